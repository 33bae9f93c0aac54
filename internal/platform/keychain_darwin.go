//go:build darwin && cgo

// Secrets are stored directly into the macOS Keychain under the service
// name io.lockbox.vault; secret names are stored into the account name.
// The items never sync off the device and are readable only while the
// device is unlocked with a passcode set. The accessibility class does not
// force a per-read user-presence check; prompting the user is the
// BiometricPrompt's job, not the item's.
package platform

import (
	keychain "github.com/keybase/go-keychain"
)

const service = "io.lockbox.vault"

type keychainStore struct{}

// DefaultSecureStore returns the macOS Keychain-backed [SecureStore].
func DefaultSecureStore() SecureStore {
	return &keychainStore{}
}

func (k *keychainStore) Available() bool { return true }

func (k *keychainStore) Store(name string, secret []byte) error {
	keychain.DeleteGenericPasswordItem(service, name)

	item := keychain.NewGenericPassword(service, name, "", secret, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenPasscodeSetThisDeviceOnly)

	return keychain.AddItem(item)
}

func (k *keychainStore) Retrieve(name string) ([]byte, error) {
	data, err := keychain.GetGenericPassword(service, name, "", "")
	if err == keychain.ErrorItemNotFound {
		return nil, ErrSecretNotFound
	} else if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrSecretNotFound
	}
	return data, nil
}

func (k *keychainStore) Remove(name string) error {
	err := keychain.DeleteGenericPasswordItem(service, name)
	if err == keychain.ErrorItemNotFound {
		return nil
	}
	return err
}
