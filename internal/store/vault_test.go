// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/utils"
	"github.com/sgurov/lockbox/models"
)

const masterPassword = "Tr0ub4dor&3"

func newTestVault(t *testing.T) (VaultStore, crypto.RecordCipher) {
	t.Helper()
	kv, err := NewFileKV(":memory:")
	require.NoError(t, err)

	cipher := crypto.NewRecordCipher(crypto.NewKeyDeriver(5, 64))
	return NewVaultStore(kv, cipher, utils.NewRecordIDGenerator(), logger.Nop()), cipher
}

func passwordRecord(site, username, password string) models.Record {
	return models.Record{
		Type: models.TypePassword,
		Secret: models.SecretPayload{
			Password: &models.PasswordData{Site: site, Username: username, Password: password},
		},
	}
}

func TestVault_InitializeAndVerify(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	exists, err := vault.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	exists, err = vault.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	ok, err := vault.Verify(ctx, masterPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = vault.Verify(ctx, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVault_InitializeTwiceFails(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	err := vault.Initialize(ctx, masterPassword)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVaultExists))
}

func TestVault_VerifyWithoutVault(t *testing.T) {
	vault, _ := newTestVault(t)

	_, err := vault.Verify(context.Background(), masterPassword)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVaultNotFound))
}

// TestVault_EndToEndScenario walks the full lifecycle: initialize, store a
// login, verify both passwords, decrypt the stored envelope, delete.
func TestVault_EndToEndScenario(t *testing.T) {
	vault, cipher := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	id, err := vault.Put(ctx, passwordRecord("example.com", "alice", "secret123"), masterPassword)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := vault.Verify(ctx, masterPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := vault.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, models.TypePassword, records[0].Type)

	plain, err := cipher.Decrypt(records[0].Envelope, masterPassword)
	require.NoError(t, err)

	var secret models.SecretPayload
	require.NoError(t, jsonUnmarshal(plain, &secret))
	require.NotNil(t, secret.Password)
	assert.Equal(t, "example.com", secret.Password.Site)
	assert.Equal(t, "alice", secret.Password.Username)
	assert.Equal(t, "secret123", secret.Password.Password)

	ok, err = vault.Verify(ctx, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := vault.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	records, err = vault.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestVault_PutNormalizesTags(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	rec := passwordRecord("example.com", "alice", "pw")
	rec.Tags = []string{"Work", "  work ", "EMAIL", ""}

	id, err := vault.Put(ctx, rec, masterPassword)
	require.NoError(t, err)

	records, err := vault.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, []string{"email", "work"}, records[0].Tags)
}

func TestVault_UpdateUnknownID(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	ok, err := vault.Update(ctx, "no-such-id", passwordRecord("a", "b", "c"), masterPassword)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVault_DeleteUnknownID(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	ok, err := vault.Delete(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVault_UpdatePreservesIdentityAndStats(t *testing.T) {
	vault, cipher := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	id, err := vault.Put(ctx, passwordRecord("example.com", "alice", "old"), masterPassword)
	require.NoError(t, err)

	touched, err := vault.Touch(ctx, id)
	require.NoError(t, err)
	require.True(t, touched)

	before, err := vault.List(ctx)
	require.NoError(t, err)

	ok, err := vault.Update(ctx, id, passwordRecord("example.com", "alice", "new"), masterPassword)
	require.NoError(t, err)
	require.True(t, ok)

	after, err := vault.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)

	assert.Equal(t, id, after[0].ID)
	assert.Equal(t, before[0].CreatedAt, after[0].CreatedAt)
	assert.Equal(t, int64(1), after[0].AccessCount)
	require.NotNil(t, after[0].LastAccessed)
	assert.False(t, after[0].ModifiedAt.Before(before[0].ModifiedAt))

	plain, err := cipher.Decrypt(after[0].Envelope, masterPassword)
	require.NoError(t, err)

	var secret models.SecretPayload
	require.NoError(t, jsonUnmarshal(plain, &secret))
	assert.Equal(t, "new", secret.Password.Password)
}

func TestVault_ClearRequiresCorrectPassword(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))
	_, err := vault.Put(ctx, passwordRecord("example.com", "alice", "pw"), masterPassword)
	require.NoError(t, err)

	ok, err := vault.Clear(ctx, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := vault.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "failed clear must not mutate the collection")

	ok, err = vault.Clear(ctx, masterPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	records, err = vault.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// the check envelope survives a clear
	verified, err := vault.Verify(ctx, masterPassword)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestVault_TouchUnknownID(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	ok, err := vault.Touch(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func jsonUnmarshal(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// countingKV wraps a KV and counts writes per key.
type countingKV struct {
	KV
	sets map[string]int
}

func (c *countingKV) Set(ctx context.Context, key string, value any) error {
	if c.sets == nil {
		c.sets = make(map[string]int)
	}
	c.sets[key]++
	return c.KV.Set(ctx, key, value)
}

func TestVault_PutAllSingleCollectionWrite(t *testing.T) {
	inner, err := NewFileKV(":memory:")
	require.NoError(t, err)
	kv := &countingKV{KV: inner}

	cipher := crypto.NewRecordCipher(crypto.NewKeyDeriver(5, 64))
	vault := NewVaultStore(kv, cipher, utils.NewRecordIDGenerator(), logger.Nop())
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))
	writesAfterInit := kv.sets[keyVaultRecords]

	recs := []models.Record{
		passwordRecord("one.example", "a", "pw1"),
		passwordRecord("two.example", "b", "pw2"),
		passwordRecord("three.example", "c", "pw3"),
	}

	ids, err := vault.PutAll(ctx, recs, masterPassword)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// three records, one read-modify-write of the collection
	assert.Equal(t, writesAfterInit+1, kv.sets[keyVaultRecords])

	stored, err := vault.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, rec := range stored {
		assert.Equal(t, ids[i], rec.ID)

		plain, err := cipher.Decrypt(rec.Envelope, masterPassword)
		require.NoError(t, err)

		var secret models.SecretPayload
		require.NoError(t, json.Unmarshal([]byte(plain), &secret))
		require.NotNil(t, secret.Password)
		assert.Equal(t, recs[i].Secret.Password.Site, secret.Password.Site)
	}
}

func TestVault_PutAllAllOrNothing(t *testing.T) {
	vault, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Initialize(ctx, masterPassword))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := vault.PutAll(cancelled, []models.Record{
		passwordRecord("one.example", "a", "pw1"),
		passwordRecord("two.example", "b", "pw2"),
	}, masterPassword)
	require.Error(t, err)

	// a failed seal must not leave any of the batch behind
	stored, err := vault.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
