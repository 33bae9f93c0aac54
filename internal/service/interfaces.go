package service

import (
	"context"

	"github.com/sgurov/lockbox/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// BatchSink receives one decrypted batch, in collection order relative to
// other batches.
type BatchSink func(batch []models.Record)

// DoneSink signals that a decrypt run emitted its last batch.
type DoneSink func()

// BatchDecryptPipeline decrypts an arbitrarily large record collection
// without blocking the caller on full completion. Batches are emitted to
// subscribed sinks in collection order; the done sinks fire exactly once
// per run, after the last batch.
//
// Records that fail to decrypt are dropped from their batch silently so one
// corrupt entry never blocks the rest of the vault; the cumulative drop
// count is observable via Dropped.
type BatchDecryptPipeline interface {
	// Start returns immediately with the total record count and launches
	// the background decrypt run. A vault with zero records completes
	// synchronously: done sinks fire before Start returns. Returns an
	// error matching [ErrDecryptRunning] if a run is already active.
	Start(ctx context.Context, password string) (int, error)

	// SubscribeBatches registers sink for batch delivery and returns its
	// unsubscribe function. Unsubscribing suppresses further delivery to
	// this sink only; the run itself always completes internally.
	SubscribeBatches(sink BatchSink) (unsubscribe func())

	// SubscribeDone registers sink for the completion signal and returns
	// its unsubscribe function.
	SubscribeDone(sink DoneSink) (unsubscribe func())

	// Dropped returns the number of records silently dropped across all
	// runs because their envelopes failed to decrypt.
	Dropped() int64
}

// VaultService is the record-level façade over the vault store: it owns
// plaintext-side concerns (payload decode, access tracking) and converts
// lower-level failures into the service error taxonomy.
type VaultService interface {
	// Exists reports whether a vault has been set up.
	Exists(ctx context.Context) (bool, error)

	// Setup initializes a new vault protected by password.
	Setup(ctx context.Context, password string) error

	// Unlock verifies password against the vault check envelope.
	Unlock(ctx context.Context, password string) (bool, error)

	// Create stores a new record and returns its assigned id.
	Create(ctx context.Context, rec models.Record, password string) (string, error)

	// Reveal decrypts a single record by id over the interactive path and
	// records the access. Returns an error matching [ErrRecordNotFound]
	// for an unknown id.
	Reveal(ctx context.Context, id, password string) (models.Record, error)

	// Update replaces the record with the given id. Returns false for an
	// unknown id.
	Update(ctx context.Context, id string, rec models.Record, password string) (bool, error)

	// Delete removes the record with the given id. Returns false for an
	// unknown id.
	Delete(ctx context.Context, id string) (bool, error)

	// Clear wipes all records after re-verifying password. Returns false
	// (no mutation) on a wrong password.
	Clear(ctx context.Context, password string) (bool, error)

	// List returns the stored records without decrypting anything.
	List(ctx context.Context) ([]models.StoredRecord, error)
}

// ImportService moves already-parsed plaintext record lists in and out of
// the vault. File formats are the caller's concern.
type ImportService interface {
	// Import encrypts and stores the given records. Returns the number of
	// records stored.
	Import(ctx context.Context, password string, records []models.Record) (int, error)

	// Export decrypts the full vault and returns plaintext records in
	// collection order.
	Export(ctx context.Context, password string) ([]models.Record, error)
}

// SecretWrap wraps the master password itself using the platform secure
// store, gated by the biometric prompt, so the user can skip typing it on
// trusted hardware. It never derives or caches keys; it only recovers the
// master secret text, which then flows through the normal unlock path.
type SecretWrap interface {
	// Available reports whether the platform supports biometric unlock.
	Available() bool

	// Enabled reports whether biometric unlock is currently enabled.
	Enabled(ctx context.Context) (bool, error)

	// Enable verifies password, prompts for biometrics, then wraps and
	// persists the password plus an enabled flag.
	Enable(ctx context.Context, password string) error

	// Disable deletes the wrapped secret and the enabled flag.
	Disable(ctx context.Context) error

	// Unlock prompts for biometrics, unwraps the master password and
	// re-verifies it against the vault check envelope before returning
	// it. An unwrapped password that fails verification is an error, not
	// a partial success.
	Unlock(ctx context.Context) (string, error)
}
