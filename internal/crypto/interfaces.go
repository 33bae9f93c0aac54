package crypto

import (
	"context"

	"github.com/sgurov/lockbox/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/crypto_mock.go -package=mock

// KeyDeriver turns (password, salt) pairs into 256-bit symmetric keys via a
// deliberately slow derivation function and caches the results.
//
// Derivation is deterministic: identical (password, salt) inputs always
// yield the identical key, which is what makes a vault written by one
// process readable by the next.
type KeyDeriver interface {
	// Derive blocks the caller while computing (or fetching from the
	// interactive cache) the key for the given password and salt. Intended
	// for single-record operations: unlock, reveal one entry.
	Derive(password string, salt []byte) []byte

	// DeriveBulk computes the key off the calling goroutine, consulting
	// the larger bulk cache used by full-vault decrypts and imports.
	// Returns ctx.Err() if ctx is cancelled before the derivation
	// finishes; the abandoned result is still inserted into the cache.
	DeriveBulk(ctx context.Context, password string, salt []byte) ([]byte, error)
}

// RecordCipher provides authenticated encryption of a single opaque text
// payload under a password-derived key. It is payload-format-agnostic:
// callers typically seal JSON-encoded record bodies, but any UTF-8 text
// works.
type RecordCipher interface {
	// Encrypt seals plaintext under a key derived from password and a
	// fresh random salt, using a fresh random IV. Repeated calls with the
	// same inputs produce unlinkable envelopes.
	Encrypt(plaintext, password string) (models.CipherEnvelope, error)

	// EncryptBulk is Encrypt with the key derived over the bulk path, for
	// use by concurrent whole-collection writes such as import.
	EncryptBulk(ctx context.Context, plaintext, password string) (models.CipherEnvelope, error)

	// Decrypt opens env with the key derived from password via the
	// interactive path. A tag mismatch, wrong password, or malformed
	// envelope yields an error matching [ErrAuthenticationFailed]; no
	// plaintext bytes are released in that case.
	Decrypt(env models.CipherEnvelope, password string) (string, error)

	// DecryptBulk is Decrypt over the bulk derivation path, for use by
	// concurrent full-vault operations.
	DecryptBulk(ctx context.Context, env models.CipherEnvelope, password string) (string, error)
}
