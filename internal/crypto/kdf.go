// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. These are package constants, not configuration:
// every envelope ever written must be derivable with the exact same
// iteration count, digest and key length, or decryption breaks.
const (
	// kdfIterations is the PBKDF2 iteration count (OWASP 2023 floor for
	// HMAC-SHA256).
	kdfIterations = 310_000

	// keyLen is the derived key length in bytes (AES-256).
	keyLen = 32
)

// keyDeriver is the private implementation of [KeyDeriver]. It owns the two
// derived-key caches: a small one for interactive single-record operations
// and a larger one for bulk decrypt/import paths.
type keyDeriver struct {
	interactive *keyCache
	bulk        *keyCache
}

// NewKeyDeriver constructs a [KeyDeriver] with the given cache capacities.
// Non-positive capacities fall back to 5 (interactive) and 64 (bulk).
func NewKeyDeriver(interactiveCap, bulkCap int) KeyDeriver {
	if interactiveCap <= 0 {
		interactiveCap = 5
	}
	if bulkCap <= 0 {
		bulkCap = 64
	}

	return &keyDeriver{
		interactive: newKeyCache(interactiveCap),
		bulk:        newKeyCache(bulkCap),
	}
}

// Derive implements [KeyDeriver]. It consults the interactive cache first
// and blocks on the PBKDF2 computation on a miss.
func (d *keyDeriver) Derive(password string, salt []byte) []byte {
	if key, ok := d.interactive.get(password, salt); ok {
		return key
	}

	key := deriveKey(password, salt)
	d.interactive.put(password, salt, key)
	return key
}

// DeriveBulk implements [KeyDeriver]. The computation runs in its own
// goroutine so the caller can be released by ctx cancellation; in that case
// the goroutine still finishes and populates the bulk cache, so a retry
// gets a cache hit.
func (d *keyDeriver) DeriveBulk(ctx context.Context, password string, salt []byte) ([]byte, error) {
	if key, ok := d.bulk.get(password, salt); ok {
		return key, nil
	}

	done := make(chan []byte, 1)
	go func() {
		key := deriveKey(password, salt)
		d.bulk.put(password, salt, key)
		done <- key
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case key := <-done:
		return key, nil
	}
}

// deriveKey is the raw derivation function: PBKDF2-HMAC-SHA256 with the
// fixed package parameters.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, keyLen, sha256.New)
}
