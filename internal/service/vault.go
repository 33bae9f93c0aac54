package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/store"
	"github.com/sgurov/lockbox/models"
)

// vaultService is the private implementation of [VaultService].
type vaultService struct {
	vault  store.VaultStore
	cipher crypto.RecordCipher
	logger *logger.Logger
}

// NewVaultService constructs a [VaultService] over vault and cipher.
func NewVaultService(vault store.VaultStore, cipher crypto.RecordCipher, log *logger.Logger) VaultService {
	return &vaultService{
		vault:  vault,
		cipher: cipher,
		logger: log,
	}
}

// Exists implements [VaultService].
func (s *vaultService) Exists(ctx context.Context) (bool, error) {
	return s.vault.Exists(ctx)
}

// Setup implements [VaultService].
func (s *vaultService) Setup(ctx context.Context, password string) error {
	if err := s.vault.Initialize(ctx, password); err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}
	return nil
}

// Unlock implements [VaultService].
func (s *vaultService) Unlock(ctx context.Context, password string) (bool, error) {
	ok, err := s.vault.Verify(ctx, password)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

// Create implements [VaultService].
func (s *vaultService) Create(ctx context.Context, rec models.Record, password string) (string, error) {
	id, err := s.vault.Put(ctx, rec, password)
	if err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}
	return id, nil
}

// Reveal implements [VaultService]. The decrypted record is returned with
// its access statistics already bumped.
func (s *vaultService) Reveal(ctx context.Context, id, password string) (models.Record, error) {
	records, err := s.vault.List(ctx)
	if err != nil {
		return models.Record{}, fmt.Errorf("list records: %w", err)
	}

	for _, stored := range records {
		if stored.ID != id {
			continue
		}

		plain, err := s.cipher.Decrypt(stored.Envelope, password)
		if err != nil {
			return models.Record{}, fmt.Errorf("open record %s: %w", id, err)
		}

		rec, err := recordFromStored(stored, plain)
		if err != nil {
			return models.Record{}, fmt.Errorf("decode record %s payload: %w", id, err)
		}

		if _, err = s.vault.Touch(ctx, id); err != nil {
			// the reveal itself succeeded; losing one access-count bump
			// is not worth failing the operation
			s.logger.Warn().Err(err).Str("id", id).Msg("failed to record access")
		} else {
			now := time.Now().UTC()
			rec.AccessCount++
			rec.LastAccessed = &now
		}

		return rec, nil
	}

	return models.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// Update implements [VaultService].
func (s *vaultService) Update(ctx context.Context, id string, rec models.Record, password string) (bool, error) {
	return s.vault.Update(ctx, id, rec, password)
}

// Delete implements [VaultService].
func (s *vaultService) Delete(ctx context.Context, id string) (bool, error) {
	return s.vault.Delete(ctx, id)
}

// Clear implements [VaultService].
func (s *vaultService) Clear(ctx context.Context, password string) (bool, error) {
	return s.vault.Clear(ctx, password)
}

// List implements [VaultService].
func (s *vaultService) List(ctx context.Context) ([]models.StoredRecord, error) {
	return s.vault.List(ctx)
}
