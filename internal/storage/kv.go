// Package storage provides the key-value stores that back the cumulative
// statistics record.
package storage

import "errors"

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage: store closed")
	// ErrUnknownBackend is returned by NewKV for an unrecognized backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// KV is a small key-value store with explicit commits. Set stages a value;
// Save makes every staged value durable. Get observes staged values.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Save() error
	Close() error
}
