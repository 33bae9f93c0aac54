package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/store"
	"github.com/sgurov/lockbox/models"
)

// exportConcurrency bounds the decrypt fan-out during export so a large
// vault does not spawn one derivation goroutine per record.
const exportConcurrency = 4

// importService is the private implementation of [ImportService].
type importService struct {
	vault  store.VaultStore
	cipher crypto.RecordCipher
	logger *logger.Logger
}

// NewImportService constructs an [ImportService].
func NewImportService(vault store.VaultStore, cipher crypto.RecordCipher, log *logger.Logger) ImportService {
	return &importService{
		vault:  vault,
		cipher: cipher,
		logger: log,
	}
}

// Import implements [ImportService]. Records are encrypted concurrently
// over the bulk derivation path and appended to the collection in a single
// write, so a failure mid-import never leaves a partially imported vault.
// The password is verified once up front so a typo cannot seed the vault
// with envelopes under a second password.
func (i *importService) Import(ctx context.Context, password string, records []models.Record) (int, error) {
	ok, err := i.vault.Verify(ctx, password)
	if err != nil {
		return 0, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return 0, ErrWrongPassword
	}

	ids, err := i.vault.PutAll(ctx, records, password)
	if err != nil {
		return 0, fmt.Errorf("store imported records: %w", err)
	}

	i.logger.Info().Int("count", len(ids)).Msg("records imported")
	return len(ids), nil
}

// Export implements [ImportService]. Unlike the streaming pipeline, export
// is an explicit whole-vault operation, so an undecryptable record is an
// error rather than a silent drop.
func (i *importService) Export(ctx context.Context, password string) ([]models.Record, error) {
	ok, err := i.vault.Verify(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrWrongPassword
	}

	stored, err := i.vault.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]models.Record, len(stored))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)

	for idx := range stored {
		idx := idx
		g.Go(func() error {
			plain, err := i.cipher.DecryptBulk(gctx, stored[idx].Envelope, password)
			if err != nil {
				return fmt.Errorf("open record %s: %w", stored[idx].ID, err)
			}

			rec, err := recordFromStored(stored[idx], plain)
			if err != nil {
				return fmt.Errorf("decode record %s payload: %w", stored[idx].ID, err)
			}

			out[idx] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
