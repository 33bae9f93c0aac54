package service

import "errors"

var (
	// ErrWrongPassword indicates that a supplied master password failed
	// verification against the vault check envelope.
	ErrWrongPassword = errors.New("wrong password")

	// ErrRecordNotFound indicates that no record exists under the
	// requested id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDecryptRunning indicates that a batch decrypt run is already
	// active; a session supports one run at a time.
	ErrDecryptRunning = errors.New("decrypt already running")

	// ErrBiometricDisabled indicates a biometric unlock attempt while the
	// feature is not enabled.
	ErrBiometricDisabled = errors.New("biometric unlock not enabled")

	// ErrUnwrappedSecretInvalid indicates that the platform store returned
	// a master password that no longer verifies against the vault. The
	// wrapped secret is stale or corrupt; the user must re-enable
	// biometric unlock with the current password.
	ErrUnwrappedSecretInvalid = errors.New("unwrapped secret failed verification")
)
