package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("Session is not in the store")
	ErrClosed   = errors.New("Store is closed")
)

// Store is the registry of live sessions. Each session's status is kept as
// a JSON document under its ID.
type Store interface {
	Put(ctx context.Context, id string, status interface{}) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error

	// Snapshot returns the whole registry as one JSON object keyed by ID.
	Snapshot() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}

// Update is sent to listeners whenever a session's status changes. Value is
// nil when the session was removed.
type Update struct {
	ID    string
	Value []byte
}
