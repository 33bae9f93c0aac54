package platform

import "errors"

var (
	// ErrCapabilityUnavailable indicates that the platform lacks biometric
	// hardware or a secure store. Surfaces as a disabled feature, not an
	// error dialog.
	ErrCapabilityUnavailable = errors.New("platform capability unavailable")

	// ErrPromptFailed indicates that the user cancelled or failed the
	// biometric prompt, or that it timed out. Recoverable: the user
	// retries or falls back to password entry.
	ErrPromptFailed = errors.New("biometric prompt failed")

	// ErrSecretNotFound indicates that no secret is stored under the
	// requested name.
	ErrSecretNotFound = errors.New("secret not found")
)
