// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/sgurov/lockbox/models"
)

// recordCipher is the private implementation of [RecordCipher] built on
// AES-256-GCM with a 16-byte IV. The GCM tag is stored as a separate
// envelope component rather than appended to the ciphertext, so each piece
// can be length-validated independently on decode.
type recordCipher struct {
	deriver KeyDeriver
}

// NewRecordCipher constructs a [RecordCipher] deriving its keys through
// deriver.
func NewRecordCipher(deriver KeyDeriver) RecordCipher {
	return &recordCipher{deriver: deriver}
}

// Encrypt implements [RecordCipher]. A fresh random 32-byte salt and fresh
// random 16-byte IV are generated on every call; they are never reused
// across calls, even for the same password, which keeps semantically
// identical plaintexts unlinkable.
func (c *recordCipher) Encrypt(plaintext, password string) (models.CipherEnvelope, error) {
	salt := make([]byte, models.SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("generate salt: %w", err)
	}

	key := c.deriver.Derive(password, salt)
	return seal(key, salt, plaintext)
}

// EncryptBulk implements [RecordCipher] over the bulk derivation path.
func (c *recordCipher) EncryptBulk(ctx context.Context, plaintext, password string) (models.CipherEnvelope, error) {
	salt := make([]byte, models.SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("generate salt: %w", err)
	}

	key, err := c.deriver.DeriveBulk(ctx, password, salt)
	if err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("derive key: %w", err)
	}
	return seal(key, salt, plaintext)
}

// seal encrypts plaintext under key with a fresh random IV and assembles
// the envelope.
func seal(key, salt []byte, plaintext string) (models.CipherEnvelope, error) {
	iv := make([]byte, models.IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("generate iv: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return models.CipherEnvelope{}, err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split it into its own
	// envelope component.
	split := len(sealed) - gcm.Overhead()
	return models.NewCipherEnvelope(sealed[:split], iv, salt, sealed[split:]), nil
}

// Decrypt implements [RecordCipher] over the interactive derivation path.
func (c *recordCipher) Decrypt(env models.CipherEnvelope, password string) (string, error) {
	ciphertext, iv, salt, tag, err := env.Decode()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	key := c.deriver.Derive(password, salt)
	return open(key, ciphertext, iv, tag)
}

// DecryptBulk implements [RecordCipher] over the bulk derivation path.
func (c *recordCipher) DecryptBulk(ctx context.Context, env models.CipherEnvelope, password string) (string, error) {
	ciphertext, iv, salt, tag, err := env.Decode()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	key, err := c.deriver.DeriveBulk(ctx, password, salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	return open(key, ciphertext, iv, tag)
}

// open verifies the tag and decrypts. The tag is checked before any
// plaintext byte is released; a mismatch almost always means the user
// entered the wrong master password.
func open(key, ciphertext, iv, tag []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, models.IVSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}
