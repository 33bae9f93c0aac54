package store

import (
	"context"

	"github.com/sgurov/lockbox/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// KV is the durable persistence collaborator: a mapping from string keys to
// JSON-serializable values with atomic single-key writes. The vault engine
// only ever touches a handful of well-known keys (check envelope, record
// collection, biometric flag).
type KV interface {
	// Has reports whether key is present.
	Has(ctx context.Context, key string) (bool, error)

	// Get unmarshals the value stored at key into target (a non-nil
	// pointer). Returns an error matching [ErrKeyNotFound] if the key is
	// absent.
	Get(ctx context.Context, key string, target any) error

	// Set stores value at key, overwriting any previous value. The write
	// is atomic: a crash mid-write never leaves a torn value behind.
	Set(ctx context.Context, key string, value any) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// VaultStore owns the encrypted record collection and the vault-wide check
// envelope. All mutating operations perform a full read-modify-write of the
// collection, serialized by an in-process writer lock, so concurrent
// mutations can never lose each other's updates.
type VaultStore interface {
	// Exists reports whether a vault has been initialized in the backing
	// store.
	Exists(ctx context.Context) (bool, error)

	// Initialize creates a new vault: a check envelope sealed under
	// password plus an empty record collection. Returns an error matching
	// [ErrVaultExists] if a vault is already present.
	Initialize(ctx context.Context, password string) error

	// Verify decrypts the check envelope and compares it to the sentinel.
	// It returns false, not an error, when the password is wrong or the
	// envelope cannot be opened; an error is reserved for persistence
	// failures.
	Verify(ctx context.Context, password string) (bool, error)

	// List returns the raw stored records (cleartext metadata plus
	// envelopes) in collection order, without decrypting anything.
	List(ctx context.Context) ([]models.StoredRecord, error)

	// Put assigns rec a fresh id, normalizes its tags, seals its secret
	// payload under password and appends it to the collection. Returns the
	// assigned id.
	Put(ctx context.Context, rec models.Record, password string) (string, error)

	// PutAll seals every record's secret payload concurrently over the
	// bulk derivation path and appends them to the collection in a single
	// write. All-or-nothing: one failed seal means nothing is persisted.
	// Returns the assigned ids in input order.
	PutAll(ctx context.Context, recs []models.Record, password string) ([]string, error)

	// Update re-seals rec's secret payload and replaces the stored record
	// with the given id, preserving its id, creation time and access
	// statistics. Returns false if the id is unknown.
	Update(ctx context.Context, id string, rec models.Record, password string) (bool, error)

	// Delete removes the record with the given id. Returns false if the id
	// is unknown.
	Delete(ctx context.Context, id string) (bool, error)

	// Clear re-verifies password and, only on success, removes every
	// record. The check envelope is left untouched. Returns false (and
	// performs no mutation) on a wrong password.
	Clear(ctx context.Context, password string) (bool, error)

	// Touch increments the access counter and stamps the last-accessed
	// time of the record with the given id. Returns false if the id is
	// unknown.
	Touch(ctx context.Context, id string) (bool, error)
}
