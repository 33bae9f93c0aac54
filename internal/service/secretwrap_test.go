// SPDX-License-Identifier: Apache-2.0

package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/mock"
	"github.com/sgurov/lockbox/internal/platform"
	"github.com/sgurov/lockbox/internal/service"
	"github.com/sgurov/lockbox/internal/store"
)

type wrapFixture struct {
	vault  *mock.MockVaultStore
	kv     *mock.MockKV
	prompt *mock.MockBiometricPrompt
	secure *mock.MockSecureStore
	wrap   service.SecretWrap
}

func newWrapFixture(t *testing.T) *wrapFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &wrapFixture{
		vault:  mock.NewMockVaultStore(ctrl),
		kv:     mock.NewMockKV(ctrl),
		prompt: mock.NewMockBiometricPrompt(ctrl),
		secure: mock.NewMockSecureStore(ctrl),
	}
	f.wrap = service.NewSecretWrap(f.vault, f.kv, f.prompt, f.secure, logger.Nop())
	return f
}

func (f *wrapFixture) expectEnabled(enabled bool) {
	f.kv.EXPECT().
		Get(gomock.Any(), store.KeyBiometricEnabled, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, target any) error {
			*(target.(*bool)) = enabled
			return nil
		})
}

func TestSecretWrapEnable(t *testing.T) {
	f := newWrapFixture(t)

	f.prompt.EXPECT().Available().Return(true)
	f.secure.EXPECT().Available().Return(true)
	f.vault.EXPECT().Verify(gomock.Any(), "master").Return(true, nil)
	f.prompt.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil)
	f.secure.EXPECT().Store(gomock.Any(), []byte("master")).Return(nil)
	f.kv.EXPECT().Set(gomock.Any(), store.KeyBiometricEnabled, true).Return(nil)

	require.NoError(t, f.wrap.Enable(context.Background(), "master"))
}

func TestSecretWrapEnableWrongPassword(t *testing.T) {
	f := newWrapFixture(t)

	f.prompt.EXPECT().Available().Return(true)
	f.secure.EXPECT().Available().Return(true)
	f.vault.EXPECT().Verify(gomock.Any(), "oops").Return(false, nil)
	// the prompt must never fire for a password that does not verify

	err := f.wrap.Enable(context.Background(), "oops")
	assert.ErrorIs(t, err, service.ErrWrongPassword)
}

func TestSecretWrapEnableUnavailablePlatform(t *testing.T) {
	f := newWrapFixture(t)

	f.prompt.EXPECT().Available().Return(false)

	err := f.wrap.Enable(context.Background(), "master")
	assert.ErrorIs(t, err, platform.ErrCapabilityUnavailable)
}

func TestSecretWrapEnablePromptRefused(t *testing.T) {
	f := newWrapFixture(t)

	f.prompt.EXPECT().Available().Return(true)
	f.secure.EXPECT().Available().Return(true)
	f.vault.EXPECT().Verify(gomock.Any(), "master").Return(true, nil)
	f.prompt.EXPECT().
		Authenticate(gomock.Any(), gomock.Any()).
		Return(platform.ErrPromptFailed)

	err := f.wrap.Enable(context.Background(), "master")
	assert.ErrorIs(t, err, platform.ErrPromptFailed)
}

func TestSecretWrapEnableRollsBackOnFlagFailure(t *testing.T) {
	f := newWrapFixture(t)

	flagErr := errors.New("disk full")

	f.prompt.EXPECT().Available().Return(true)
	f.secure.EXPECT().Available().Return(true)
	f.vault.EXPECT().Verify(gomock.Any(), "master").Return(true, nil)
	f.prompt.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil)
	f.secure.EXPECT().Store(gomock.Any(), []byte("master")).Return(nil)
	f.kv.EXPECT().Set(gomock.Any(), store.KeyBiometricEnabled, true).Return(flagErr)
	// a failed flag write must not leave the wrapped secret behind
	f.secure.EXPECT().Remove(gomock.Any()).Return(nil)

	err := f.wrap.Enable(context.Background(), "master")
	assert.ErrorIs(t, err, flagErr)
}

func TestSecretWrapEnabled(t *testing.T) {
	t.Run("flag set", func(t *testing.T) {
		f := newWrapFixture(t)
		f.expectEnabled(true)

		enabled, err := f.wrap.Enabled(context.Background())
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("flag absent", func(t *testing.T) {
		f := newWrapFixture(t)
		f.kv.EXPECT().
			Get(gomock.Any(), store.KeyBiometricEnabled, gomock.Any()).
			Return(store.ErrKeyNotFound)

		enabled, err := f.wrap.Enabled(context.Background())
		require.NoError(t, err)
		assert.False(t, enabled)
	})
}

func TestSecretWrapDisable(t *testing.T) {
	f := newWrapFixture(t)

	f.secure.EXPECT().Remove(gomock.Any()).Return(nil)
	f.kv.EXPECT().Delete(gomock.Any(), store.KeyBiometricEnabled).Return(nil)

	require.NoError(t, f.wrap.Disable(context.Background()))
}

func TestSecretWrapUnlock(t *testing.T) {
	f := newWrapFixture(t)

	f.expectEnabled(true)
	f.prompt.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil)
	f.secure.EXPECT().Retrieve(gomock.Any()).Return([]byte("master"), nil)
	f.vault.EXPECT().Verify(gomock.Any(), "master").Return(true, nil)

	password, err := f.wrap.Unlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", password)
}

func TestSecretWrapUnlockWhileDisabled(t *testing.T) {
	f := newWrapFixture(t)

	f.expectEnabled(false)

	_, err := f.wrap.Unlock(context.Background())
	assert.ErrorIs(t, err, service.ErrBiometricDisabled)
}

func TestSecretWrapUnlockStaleSecret(t *testing.T) {
	f := newWrapFixture(t)

	f.expectEnabled(true)
	f.prompt.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil)
	f.secure.EXPECT().Retrieve(gomock.Any()).Return([]byte("old-master"), nil)
	f.vault.EXPECT().Verify(gomock.Any(), "old-master").Return(false, nil)

	// the vault password changed after enabling: the unwrapped secret must
	// never be handed back as a success
	_, err := f.wrap.Unlock(context.Background())
	assert.ErrorIs(t, err, service.ErrUnwrappedSecretInvalid)
}

func TestSecretWrapUnlockPromptRefused(t *testing.T) {
	f := newWrapFixture(t)

	f.expectEnabled(true)
	f.prompt.EXPECT().
		Authenticate(gomock.Any(), gomock.Any()).
		Return(platform.ErrPromptFailed)

	_, err := f.wrap.Unlock(context.Background())
	assert.ErrorIs(t, err, platform.ErrPromptFailed)
}
