package store

import (
	"context"
	"errors"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

var (
	ErrNotFound = errors.New("report not found")
	ErrClosed   = errors.New("store closed")
)

// Store persists reports. Implementations are safe for concurrent use.
type Store interface {
	// Create inserts r and returns it with the ID and CreatedAt assigned by
	// the store.
	Create(ctx context.Context, r model.Report) (model.Report, error)

	// List returns the reports matching f, newest first.
	List(ctx context.Context, f model.Filter) ([]model.Report, error)

	Get(ctx context.Context, id string) (model.Report, error)

	// Update applies p to the report. Writing a field that already holds the
	// target value succeeds.
	Update(ctx context.Context, id string, p model.Patch) error

	Delete(ctx context.Context, id string) error

	// Subscribe delivers a Change for every write until ctx is done. The
	// channel is closed afterwards.
	Subscribe(ctx context.Context) (<-chan Change, error)

	Close() error
}

// Op is the kind of write a Change reports.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"

	// OpResync is sent when notifications may have been lost, for example
	// after a reconnect. Consumers should reload everything.
	OpResync Op = "resync"
)

// Change notifies that the report set was modified.
type Change struct {
	Op Op        `json:"op"`
	ID string    `json:"id,omitempty"`
	At time.Time `json:"at"`
}
