package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no session record exists.
var ErrNotFound = errors.New("record not found")

// SessionRecords is durable key-value persistence for sealed sessions. Each
// deployment keeps at most one record under its key.
type SessionRecords interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, sealed string) error
	// Delete is idempotent: deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// SessionKey is the record key for a deployment's current session.
func SessionKey(deployment string) string {
	return "portal:session:" + deployment
}
