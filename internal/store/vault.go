// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/utils"
	"github.com/sgurov/lockbox/models"
)

// Well-known keys in the KV backend.
const (
	keyVaultCheck   = "vault:check"
	keyVaultRecords = "vault:records"

	// KeyBiometricEnabled marks biometric unlock as enabled. Owned by the
	// secret-wrap service; declared here with the other vault keys so the
	// full key surface of the backend is visible in one place.
	KeyBiometricEnabled = "vault:biometric"
)

// checkSentinel is the fixed plaintext sealed into the vault check
// envelope. Verifying a candidate master password means decrypting the
// check envelope and comparing against this value, so no real record is
// ever touched during verification. The value must never change for an
// existing vault.
const checkSentinel = "lockbox.check.v1"

// vaultStore is the private implementation of [VaultStore].
type vaultStore struct {
	kv     KV
	cipher crypto.RecordCipher
	ids    *utils.RecordIDGenerator
	logger *logger.Logger

	// mu serializes the read-modify-write cycle of every mutation; the
	// whole collection is rewritten per change, so two unserialized
	// writers would lose updates.
	mu sync.Mutex
}

// NewVaultStore constructs a [VaultStore] persisting through kv and sealing
// record payloads through cipher.
func NewVaultStore(kv KV, cipher crypto.RecordCipher, ids *utils.RecordIDGenerator, log *logger.Logger) VaultStore {
	return &vaultStore{
		kv:     kv,
		cipher: cipher,
		ids:    ids,
		logger: log,
	}
}

// Exists implements [VaultStore].
func (v *vaultStore) Exists(ctx context.Context) (bool, error) {
	return v.kv.Has(ctx, keyVaultCheck)
}

// Initialize implements [VaultStore].
func (v *vaultStore) Initialize(ctx context.Context, password string) error {
	exists, err := v.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check vault existence: %w", err)
	}
	if exists {
		return ErrVaultExists
	}

	checkEnv, err := v.cipher.Encrypt(checkSentinel, password)
	if err != nil {
		return fmt.Errorf("seal check envelope: %w", err)
	}

	if err = v.kv.Set(ctx, keyVaultCheck, checkEnv); err != nil {
		return fmt.Errorf("write check envelope: %w", err)
	}
	if err = v.kv.Set(ctx, keyVaultRecords, []models.StoredRecord{}); err != nil {
		return fmt.Errorf("write empty record collection: %w", err)
	}

	v.logger.Info().Msg("vault initialized")
	return nil
}

// Verify implements [VaultStore]. A wrong password or undecryptable check
// envelope yields (false, nil); errors are reserved for persistence
// failures or a missing vault.
func (v *vaultStore) Verify(ctx context.Context, password string) (bool, error) {
	var checkEnv models.CipherEnvelope
	if err := v.kv.Get(ctx, keyVaultCheck, &checkEnv); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, ErrVaultNotFound
		}
		return false, fmt.Errorf("read check envelope: %w", err)
	}

	plain, err := v.cipher.Decrypt(checkEnv, password)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			return false, nil
		}
		return false, fmt.Errorf("open check envelope: %w", err)
	}

	return plain == checkSentinel, nil
}

// List implements [VaultStore].
func (v *vaultStore) List(ctx context.Context) ([]models.StoredRecord, error) {
	var records []models.StoredRecord
	if err := v.kv.Get(ctx, keyVaultRecords, &records); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("read record collection: %w", err)
	}
	return records, nil
}

// Put implements [VaultStore].
func (v *vaultStore) Put(ctx context.Context, rec models.Record, password string) (string, error) {
	envelope, err := v.seal(rec, password)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.List(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	stored := models.StoredRecord{
		ID:         v.ids.Generate(),
		Type:       rec.Type,
		Envelope:   envelope,
		Tags:       models.NormalizeTags(rec.Tags),
		IsFavorite: rec.IsFavorite,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	records = append(records, stored)

	if err = v.kv.Set(ctx, keyVaultRecords, records); err != nil {
		return "", fmt.Errorf("write record collection: %w", err)
	}

	v.logger.Debug().Str("id", stored.ID).Str("type", string(stored.Type)).Msg("record stored")
	return stored.ID, nil
}

// sealConcurrency bounds the encrypt fan-out of PutAll so a large import
// does not spawn one derivation goroutine per record.
const sealConcurrency = 4

// PutAll implements [VaultStore].
func (v *vaultStore) PutAll(ctx context.Context, recs []models.Record, password string) ([]string, error) {
	envelopes := make([]models.CipherEnvelope, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sealConcurrency)
	for i := range recs {
		i := i
		g.Go(func() error {
			envelope, err := v.sealBulk(gctx, recs[i], password)
			if err != nil {
				return err
			}
			envelopes[i] = envelope
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ids := make([]string, len(recs))
	for i, rec := range recs {
		stored := models.StoredRecord{
			ID:         v.ids.Generate(),
			Type:       rec.Type,
			Envelope:   envelopes[i],
			Tags:       models.NormalizeTags(rec.Tags),
			IsFavorite: rec.IsFavorite,
			CreatedAt:  now,
			ModifiedAt: now,
		}
		records = append(records, stored)
		ids[i] = stored.ID
	}

	if err = v.kv.Set(ctx, keyVaultRecords, records); err != nil {
		return nil, fmt.Errorf("write record collection: %w", err)
	}

	v.logger.Debug().Int("count", len(ids)).Msg("records stored")
	return ids, nil
}

// Update implements [VaultStore].
func (v *vaultStore) Update(ctx context.Context, id string, rec models.Record, password string) (bool, error) {
	envelope, err := v.seal(rec, password)
	if err != nil {
		return false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.List(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return false, nil
	}

	prev := records[idx]
	records[idx] = models.StoredRecord{
		ID:           prev.ID,
		Type:         rec.Type,
		Envelope:     envelope,
		Tags:         models.NormalizeTags(rec.Tags),
		IsFavorite:   rec.IsFavorite,
		CreatedAt:    prev.CreatedAt,
		ModifiedAt:   time.Now().UTC(),
		AccessCount:  prev.AccessCount,
		LastAccessed: prev.LastAccessed,
	}

	if err = v.kv.Set(ctx, keyVaultRecords, records); err != nil {
		return false, fmt.Errorf("write record collection: %w", err)
	}
	return true, nil
}

// Delete implements [VaultStore].
func (v *vaultStore) Delete(ctx context.Context, id string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.List(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return false, nil
	}
	records = append(records[:idx], records[idx+1:]...)

	if err = v.kv.Set(ctx, keyVaultRecords, records); err != nil {
		return false, fmt.Errorf("write record collection: %w", err)
	}
	return true, nil
}

// Clear implements [VaultStore].
func (v *vaultStore) Clear(ctx context.Context, password string) (bool, error) {
	ok, err := v.Verify(ctx, password)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err = v.kv.Set(ctx, keyVaultRecords, []models.StoredRecord{}); err != nil {
		return false, fmt.Errorf("write record collection: %w", err)
	}

	v.logger.Info().Msg("vault cleared")
	return true, nil
}

// Touch implements [VaultStore].
func (v *vaultStore) Touch(ctx context.Context, id string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.List(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return false, nil
	}

	now := time.Now().UTC()
	records[idx].AccessCount++
	records[idx].LastAccessed = &now

	if err = v.kv.Set(ctx, keyVaultRecords, records); err != nil {
		return false, fmt.Errorf("write record collection: %w", err)
	}
	return true, nil
}

// seal JSON-encodes the record's secret payload and encrypts it.
func (v *vaultStore) seal(rec models.Record, password string) (models.CipherEnvelope, error) {
	body, err := json.Marshal(rec.Secret)
	if err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("encode secret payload: %w", err)
	}

	envelope, err := v.cipher.Encrypt(string(body), password)
	if err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("seal secret payload: %w", err)
	}
	return envelope, nil
}

// sealBulk is seal over the bulk derivation path.
func (v *vaultStore) sealBulk(ctx context.Context, rec models.Record, password string) (models.CipherEnvelope, error) {
	body, err := json.Marshal(rec.Secret)
	if err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("encode secret payload: %w", err)
	}

	envelope, err := v.cipher.EncryptBulk(ctx, string(body), password)
	if err != nil {
		return models.CipherEnvelope{}, fmt.Errorf("seal secret payload: %w", err)
	}
	return envelope, nil
}

func indexOf(records []models.StoredRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
