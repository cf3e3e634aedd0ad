// Package badger implements the local record store on BadgerDB. Keys are
// "<entity>/<zero-padded seq>" so a prefix scan yields insertion order.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RecordStore = (*Store)(nil)

// seqWidth is the zero-padded width of the sequence part of a key.
const seqWidth = 20

// Options configures the BadgerDB store.
type Options struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// Logger receives store warnings. Badger's own logging is disabled.
	Logger *slog.Logger
}

// Store is a BadgerDB-backed types.RecordStore.
type Store struct {
	mu     sync.Mutex
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// DataPath returns the badger directory under a data directory.
func DataPath(dataDir string) string {
	return filepath.Join(dataDir, "badger")
}

func prefix(entity string) []byte {
	return []byte(entity + "/")
}

func key(entity string, seq uint64) []byte {
	return fmt.Appendf(prefix(entity), "%0*d", seqWidth, seq)
}

// LoadAll returns the entity's records in key order.
func (s *Store) LoadAll(ctx context.Context, entity string) []types.Record {
	records := []types.Record{}
	if !types.ValidEntityName(entity) {
		return records
	}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := prefix(entity)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var rec types.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil || rec.ID == "" {
				s.logger.WarnContext(ctx, "badger: skipping malformed record",
					"entity", entity, "key", string(it.Item().Key()))
				continue
			}
			records = append(records, rec.WithSource(types.SourceLocal))
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "badger: loading snapshot", "entity", entity, "error", err)
	}
	return records
}

// SaveAll deletes the entity's keys and writes records in one transaction.
func (s *Store) SaveAll(ctx context.Context, entity string, records []types.Record) error {
	if !types.ValidEntityName(entity) {
		return fmt.Errorf("%w: invalid entity name %q", types.ErrStorageWrite, entity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		p := prefix(entity)
		var stale [][]byte
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for i, rec := range records {
			val, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", rec.ID, err)
			}
			if err := txn.Set(key(entity, uint64(i+1)), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrStorageWrite, entity, err)
	}
	return nil
}

// AppendOne writes record under the next sequence number.
func (s *Store) AppendOne(ctx context.Context, entity string, record types.Record) error {
	if !types.ValidEntityName(entity) {
		return fmt.Errorf("%w: invalid entity name %q", types.ErrStorageWrite, entity)
	}
	val, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encoding record %s: %w", types.ErrStorageWrite, record.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		last, err := lastSeq(txn, entity)
		if err != nil {
			return err
		}
		return txn.Set(key(entity, last+1), val)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrStorageWrite, entity, err)
	}
	return nil
}

// lastSeq returns the highest sequence stored for entity, or 0.
func lastSeq(txn *badger.Txn, entity string) (uint64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	p := prefix(entity)
	// 0xFF sorts after every digit, so the reverse seek lands on the last key.
	it.Seek(append(append([]byte{}, p...), 0xFF))
	if !it.ValidForPrefix(p) {
		return 0, nil
	}
	k := it.Item().Key()
	seq, err := strconv.ParseUint(string(k[len(p):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing key %q: %w", k, err)
	}
	return seq, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}
