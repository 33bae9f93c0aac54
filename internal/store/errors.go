package store

import "errors"

var (
	// ErrKeyNotFound indicates that a requested key is absent from the
	// key-value backend.
	ErrKeyNotFound = errors.New("key not found")

	// ErrPersistence indicates that the key-value backend failed to read
	// or write. The in-flight operation is abandoned and never retried
	// automatically: blind rewrites against a misbehaving store risk data
	// loss.
	ErrPersistence = errors.New("persistence failure")

	// ErrVaultExists indicates an attempt to initialize a vault where one
	// already exists.
	ErrVaultExists = errors.New("vault already exists")

	// ErrVaultNotFound indicates an operation against a vault that has
	// never been initialized.
	ErrVaultNotFound = errors.New("vault not found")
)
