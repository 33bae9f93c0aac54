// Package platform abstracts the OS-provided facilities used for
// biometric unlock: the biometric prompt itself and the secure storage
// primitive the wrapped master secret lives in. Consumers depend on the
// interfaces; concrete backends are selected per GOOS at build time.
package platform

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mock/platform_mock.go -package=mock

// BiometricPrompt asks the user to authenticate with the platform biometric
// mechanism (e.g. Touch ID).
type BiometricPrompt interface {
	// Available reports whether biometric hardware is present and usable.
	Available() bool

	// Authenticate blocks until the user passes, fails, or cancels the
	// OS-level prompt, or ctx expires. Cancellation and timeout surface as
	// an error matching [ErrPromptFailed], never as a hang.
	Authenticate(ctx context.Context, reason string) error
}

// SecureStore is the platform secret-encryption primitive: it persists
// small named secrets under OS protection (e.g. the macOS Keychain).
type SecureStore interface {
	// Available reports whether a platform secure store exists on this
	// system.
	Available() bool

	// Store persists secret under name, replacing any previous value.
	Store(name string, secret []byte) error

	// Retrieve returns the secret stored under name, or an error matching
	// [ErrSecretNotFound] if none exists.
	Retrieve(name string) ([]byte, error)

	// Remove deletes the secret stored under name. Removing an absent
	// secret is a no-op.
	Remove(name string) error
}
