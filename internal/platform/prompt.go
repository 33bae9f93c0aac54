package platform

import "context"

// DefaultPrompt returns the platform biometric prompt. It gates on
// capability and caller cancellation only; the stored item itself is
// protected by the device passcode, not a per-read presence check.
// On platforms without a secure store it reports the feature unavailable.
//
// TODO: drive LocalAuthentication through cgo so Authenticate shows a real
// Touch ID dialog instead of delegating to the secure store's availability.
func DefaultPrompt(store SecureStore) BiometricPrompt {
	return &storePrompt{store: store}
}

type storePrompt struct {
	store SecureStore
}

func (p *storePrompt) Available() bool {
	return p.store.Available()
}

// Authenticate blocks until the capability check passes or ctx expires.
// A ctx cancellation (the user dismissed the OS dialog, or the caller timed
// out) maps to ErrPromptFailed so callers never see a bare context error
// from the unlock path.
func (p *storePrompt) Authenticate(ctx context.Context, _ string) error {
	if !p.store.Available() {
		return ErrCapabilityUnavailable
	}

	select {
	case <-ctx.Done():
		return ErrPromptFailed
	default:
		return nil
	}
}
