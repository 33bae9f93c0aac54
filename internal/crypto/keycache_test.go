package crypto

import (
	"bytes"
	"fmt"
	"testing"
)

func TestKeyCache_GetAfterPut(t *testing.T) {
	c := newKeyCache(3)
	salt := []byte("salt-a")
	derived := []byte("derived-key-a")

	c.put("pw", salt, derived)

	got, ok := c.get("pw", salt)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if !bytes.Equal(got, derived) {
		t.Fatalf("cache returned wrong key")
	}
}

func TestKeyCache_MissForUnknownPair(t *testing.T) {
	c := newKeyCache(3)
	c.put("pw", []byte("salt-a"), []byte("key"))

	if _, ok := c.get("pw", []byte("salt-b")); ok {
		t.Fatalf("expected miss for different salt")
	}
	if _, ok := c.get("other", []byte("salt-a")); ok {
		t.Fatalf("expected miss for different password")
	}
}

func TestKeyCache_EvictsOldestInserted(t *testing.T) {
	c := newKeyCache(2)

	c.put("pw", []byte("salt-1"), []byte("key-1"))
	c.put("pw", []byte("salt-2"), []byte("key-2"))
	c.put("pw", []byte("salt-3"), []byte("key-3"))

	if c.len() != 2 {
		t.Fatalf("cache size = %d, want 2", c.len())
	}
	if _, ok := c.get("pw", []byte("salt-1")); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, ok := c.get("pw", []byte("salt-2")); !ok {
		t.Fatalf("second entry should survive")
	}
	if _, ok := c.get("pw", []byte("salt-3")); !ok {
		t.Fatalf("newest entry should survive")
	}
}

func TestKeyCache_ReinsertDoesNotGrow(t *testing.T) {
	c := newKeyCache(2)

	c.put("pw", []byte("salt-1"), []byte("key-1"))
	c.put("pw", []byte("salt-1"), []byte("key-1b"))

	if c.len() != 1 {
		t.Fatalf("cache size = %d, want 1", c.len())
	}

	got, _ := c.get("pw", []byte("salt-1"))
	if !bytes.Equal(got, []byte("key-1b")) {
		t.Fatalf("reinsert should overwrite the stored key")
	}
}

func TestKeyCache_ConcurrentPuts(t *testing.T) {
	c := newKeyCache(8)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				salt := []byte(fmt.Sprintf("salt-%d-%d", i, j))
				c.put("pw", salt, []byte("key"))
				c.get("pw", salt)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if c.len() > 8 {
		t.Fatalf("cache exceeded capacity: %d", c.len())
	}
}
