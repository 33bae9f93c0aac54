//go:build !darwin || !cgo

package platform

// DefaultSecureStore returns an unavailable [SecureStore] on platforms
// without a supported secure storage backend. Callers see the biometric
// unlock feature as disabled, not broken.
func DefaultSecureStore() SecureStore {
	return &unavailableStore{}
}

type unavailableStore struct{}

func (u *unavailableStore) Available() bool { return false }

func (u *unavailableStore) Store(string, []byte) error {
	return ErrCapabilityUnavailable
}

func (u *unavailableStore) Retrieve(string) ([]byte, error) {
	return nil, ErrCapabilityUnavailable
}

func (u *unavailableStore) Remove(string) error {
	return ErrCapabilityUnavailable
}
