// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Component byte lengths of a CipherEnvelope. The hex-encoded persisted
// form is twice as long for each component.
const (
	// IVSize is the AES-GCM initialization vector length in bytes.
	IVSize = 16

	// SaltSize is the key-derivation salt length in bytes.
	SaltSize = 32

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// ErrMalformedEnvelope indicates that an envelope component is not valid
// hex or has the wrong byte length for its role.
var ErrMalformedEnvelope = errors.New("malformed cipher envelope")

// CipherEnvelope is one encrypted payload at rest: ciphertext plus the
// parameters needed to decrypt and authenticate it. All components are
// hex-encoded strings. The structure and meaning of the plaintext are
// unknown to the envelope.
type CipherEnvelope struct {
	// Ciphertext is the hex-encoded AES-GCM ciphertext (tag excluded).
	Ciphertext string `json:"ct"`

	// IV is the hex-encoded 16-byte initialization vector,
	// freshly generated for every encryption.
	IV string `json:"iv"`

	// Salt is the hex-encoded 32-byte key-derivation salt,
	// freshly generated for every encryption.
	Salt string `json:"salt"`

	// Tag is the hex-encoded 16-byte GCM authentication tag.
	Tag string `json:"tag"`
}

// NewCipherEnvelope hex-encodes raw envelope components.
func NewCipherEnvelope(ciphertext, iv, salt, tag []byte) CipherEnvelope {
	return CipherEnvelope{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		Salt:       hex.EncodeToString(salt),
		Tag:        hex.EncodeToString(tag),
	}
}

// Decode hex-decodes all components and validates their byte lengths.
// It returns ErrMalformedEnvelope (wrapped) if any component is not valid
// hex or has the wrong length for its role. Callers must treat a decode
// failure exactly like an authentication failure: the envelope is
// unusable, not partially readable.
func (e CipherEnvelope) Decode() (ciphertext, iv, salt, tag []byte, err error) {
	ciphertext, err = hex.DecodeString(e.Ciphertext)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}

	iv, err = hex.DecodeString(e.IV)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}
	if len(iv) != IVSize {
		return nil, nil, nil, nil, fmt.Errorf("%w: iv length %d, want %d", ErrMalformedEnvelope, len(iv), IVSize)
	}

	salt, err = hex.DecodeString(e.Salt)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedEnvelope, err)
	}
	if len(salt) != SaltSize {
		return nil, nil, nil, nil, fmt.Errorf("%w: salt length %d, want %d", ErrMalformedEnvelope, len(salt), SaltSize)
	}

	tag, err = hex.DecodeString(e.Tag)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: tag: %v", ErrMalformedEnvelope, err)
	}
	if len(tag) != TagSize {
		return nil, nil, nil, nil, fmt.Errorf("%w: tag length %d, want %d", ErrMalformedEnvelope, len(tag), TagSize)
	}

	return ciphertext, iv, salt, tag, nil
}
