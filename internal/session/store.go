package session

import (
	"context"
	"time"
)

// Store is the contract the guard and the activity monitor use.
//
// Every call is synchronous and local; no network I/O happens here. Errors
// wrap common.ErrStorage.
type Store interface {
	// Load reads the current record. Missing keys read as the zero record.
	Load(ctx context.Context) (Record, error)

	// Save replaces the record. The write is atomic for other readers.
	Save(ctx context.Context, r Record) error

	// Touch sets only the last-activity timestamp.
	Touch(ctx context.Context, at time.Time) error

	// Clear removes every session key atomically.
	Clear(ctx context.Context) error

	// Wipe removes everything in local storage, session keys and cached UI
	// state alike.
	Wipe(ctx context.Context) error
}
