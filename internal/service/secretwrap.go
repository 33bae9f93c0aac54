// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/platform"
	"github.com/sgurov/lockbox/internal/store"
)

// wrappedSecretName is the platform-store entry the wrapped master
// password lives under.
const wrappedSecretName = "lockbox.master-secret"

// secretWrap is the private implementation of [SecretWrap].
type secretWrap struct {
	vault  store.VaultStore
	kv     store.KV
	prompt platform.BiometricPrompt
	secure platform.SecureStore
	logger *logger.Logger
}

// NewSecretWrap constructs a [SecretWrap] persisting its enabled flag in kv
// and the wrapped secret in secure, gated by prompt.
func NewSecretWrap(vault store.VaultStore, kv store.KV, prompt platform.BiometricPrompt, secure platform.SecureStore, log *logger.Logger) SecretWrap {
	return &secretWrap{
		vault:  vault,
		kv:     kv,
		prompt: prompt,
		secure: secure,
		logger: log,
	}
}

// Available implements [SecretWrap].
func (s *secretWrap) Available() bool {
	return s.prompt.Available() && s.secure.Available()
}

// Enabled implements [SecretWrap].
func (s *secretWrap) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.kv.Get(ctx, store.KeyBiometricEnabled, &enabled)
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read biometric flag: %w", err)
	}
	return enabled, nil
}

// Enable implements [SecretWrap].
func (s *secretWrap) Enable(ctx context.Context, password string) error {
	if !s.Available() {
		return platform.ErrCapabilityUnavailable
	}

	ok, err := s.vault.Verify(ctx, password)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	if err = s.prompt.Authenticate(ctx, "Enable biometric unlock for your vault"); err != nil {
		return fmt.Errorf("biometric prompt: %w", err)
	}

	if err = s.secure.Store(wrappedSecretName, []byte(password)); err != nil {
		return fmt.Errorf("wrap master secret: %w", err)
	}

	if err = s.kv.Set(ctx, store.KeyBiometricEnabled, true); err != nil {
		// keep the store and the flag in agreement
		if removeErr := s.secure.Remove(wrappedSecretName); removeErr != nil {
			s.logger.Error().Err(removeErr).Msg("failed to roll back wrapped secret")
		}
		return fmt.Errorf("persist biometric flag: %w", err)
	}

	s.logger.Info().Msg("biometric unlock enabled")
	return nil
}

// Disable implements [SecretWrap].
func (s *secretWrap) Disable(ctx context.Context) error {
	if err := s.secure.Remove(wrappedSecretName); err != nil && !errors.Is(err, platform.ErrCapabilityUnavailable) {
		return fmt.Errorf("remove wrapped secret: %w", err)
	}

	if err := s.kv.Delete(ctx, store.KeyBiometricEnabled); err != nil {
		return fmt.Errorf("remove biometric flag: %w", err)
	}

	s.logger.Info().Msg("biometric unlock disabled")
	return nil
}

// Unlock implements [SecretWrap].
func (s *secretWrap) Unlock(ctx context.Context) (string, error) {
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return "", err
	}
	if !enabled {
		return "", ErrBiometricDisabled
	}

	if err = s.prompt.Authenticate(ctx, "Unlock your vault"); err != nil {
		return "", fmt.Errorf("biometric prompt: %w", err)
	}

	data, err := s.secure.Retrieve(wrappedSecretName)
	if err != nil {
		return "", fmt.Errorf("unwrap master secret: %w", err)
	}

	password := string(data)
	ok, err := s.vault.Verify(ctx, password)
	if err != nil {
		return "", fmt.Errorf("verify unwrapped secret: %w", err)
	}
	if !ok {
		return "", ErrUnwrappedSecretInvalid
	}

	return password, nil
}
