package types

import (
	"context"
	"errors"
	"time"
)

// RecordStore is the durable, process-local holder of entity snapshots.
// Records are kept per entity in insertion order.
type RecordStore interface {
	// LoadAll returns every locally held record of the entity in insertion
	// order. It never fails: unreadable or malformed entries are skipped and
	// a missing entity yields an empty slice.
	LoadAll(ctx context.Context, entity string) []Record

	// SaveAll replaces the full sequence held for the entity.
	// Failures wrap ErrStorageWrite.
	SaveAll(ctx context.Context, entity string, records []Record) error

	// AppendOne adds a single record to the end of the entity's sequence.
	// Concurrent appends from the same process are serialized.
	// Failures wrap ErrStorageWrite.
	AppendOne(ctx context.Context, entity string, record Record) error

	// Close releases the underlying medium.
	Close() error
}

// RemoteStore performs CRUD against the remote service, one entity at a
// time. Implementations do not retry and do not cache. Every method may
// fail with ErrRemoteUnavailable; Get, Update and Delete may also fail with
// ErrNotFound. List never returns ErrNotFound. Implementations should
// return promptly once ctx is done; callers that wrap a store with a
// deadline stop waiting at the deadline either way.
type RemoteStore interface {
	// List returns the entity's records in the order the service returns
	// them. Implementations may push the filter down; callers re-apply it.
	List(ctx context.Context, entity string, filter Filter) ([]Record, error)

	// Get returns the record with the given id.
	Get(ctx context.Context, entity, id string) (Record, error)

	// Create stores a record whose ID and timestamps are already assigned.
	Create(ctx context.Context, entity string, record Record) (Record, error)

	// Update merges fields into the stored record and sets UpdatedAt.
	Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (Record, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, entity, id string) error

	// BulkCreate stores all records as one batch. A failure of any record
	// fails the whole batch.
	BulkCreate(ctx context.Context, entity string, records []Record) ([]Record, error)

	// Close releases connections held by the client.
	Close() error
}

// Repository is the uniform CRUD and query API exposed per entity name.
type Repository interface {
	// List returns every record of the entity, sorted by orderBy when set.
	List(ctx context.Context, entity string, orderBy OrderBy) ([]Record, error)

	// Filter returns the records matching every condition of filter.
	Filter(ctx context.Context, entity string, filter Filter, orderBy OrderBy) ([]Record, error)

	// Get returns ErrNotFound when no consulted source holds the id.
	Get(ctx context.Context, entity, id string) (Record, error)

	// Create assigns id and timestamps, persists, and runs post-create hooks.
	Create(ctx context.Context, entity string, fields map[string]any) (Record, error)

	// Update merges fields into the existing record.
	Update(ctx context.Context, entity, id string, fields map[string]any) (Record, error)

	// Delete is idempotent: deleting a missing id succeeds.
	Delete(ctx context.Context, entity, id string) error

	// BulkCreate creates all records against the remote store as one batch.
	BulkCreate(ctx context.Context, entity string, fields []map[string]any) ([]Record, error)
}

// Repository and store errors. Callers match them with errors.Is.
var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrNotFound          = errors.New("record not found")
	ErrStorageWrite      = errors.New("local storage write failed")
	ErrValidation        = errors.New("validation failed")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrInvalidID         = errors.New("invalid record ID")
	ErrInvalidFilter     = errors.New("invalid filter value type")
)
