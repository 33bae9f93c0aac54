package crypto

import (
	"crypto/sha256"
	"sync"
)

// keyCache is a bounded, insertion-ordered cache of derived keys.
// Once size exceeds capacity the oldest-inserted entry is evicted.
//
// Entries are keyed by a digest of (password, salt) so the plaintext
// password is not held as a map key. Safe for concurrent use; racing
// callers that derive the same key before either inserts simply do
// duplicate work, last insert wins.
type keyCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]byte
	order    []string
}

func newKeyCache(capacity int) *keyCache {
	return &keyCache{
		capacity: capacity,
		entries:  make(map[string][]byte, capacity),
	}
}

// cacheKey digests (password, salt) into a map key. The zero byte
// separator prevents (password="ab", salt="c") from colliding with
// (password="a", salt="bc").
func cacheKey(password string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte{0})
	h.Write(salt)
	return string(h.Sum(nil))
}

func (c *keyCache) get(password string, salt []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.entries[cacheKey(password, salt)]
	return key, ok
}

func (c *keyCache) put(password string, salt []byte, derived []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey(password, salt)
	if _, exists := c.entries[k]; !exists {
		c.order = append(c.order, k)
	}
	c.entries[k] = derived

	for len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *keyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
