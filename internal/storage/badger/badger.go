// Package badger implements the collection store on an embedded BadgerDB.
// It serves single-node deployments and tests (in-memory mode).
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/bull/ingestion-service/internal/storage"
)

const (
	collectionPrefix = "col/"
	recordPrefix     = "rec/"

	// Record values on disk are larger than this and live in the value log,
	// so a transaction only carries their pointers.
	valueThreshold = 1 << 10
	// In-memory databases keep every value in the memtable; a transaction may
	// use 15% of it.
	inMemoryMemTableSize = 128 << 20
)

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func recordKey(collection, id string) []byte {
	return []byte(recordPrefix + collection + "/" + id)
}

func recordsPrefix(collection string) []byte {
	return []byte(recordPrefix + collection + "/")
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// recordBody is the JSON tail of a record value.
type recordBody struct {
	Text     string                `json:"text"`
	Metadata storage.ChunkMetadata `json:"metadata"`
}

// encodeRecord lays a record out as a uint32 dimension, the vector as
// little-endian float32s, then the JSON body.
func encodeRecord(r storage.Record) ([]byte, error) {
	body, err := json.Marshal(recordBody{Text: r.Text, Metadata: r.Metadata})
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4+4*len(r.Vector), 4+4*len(r.Vector)+len(body))
	binary.LittleEndian.PutUint32(buf, uint32(len(r.Vector)))
	for i, f := range r.Vector {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(f))
	}
	return append(buf, body...), nil
}

func decodeRecord(id string, val []byte) (storage.Record, error) {
	if len(val) < 4 {
		return storage.Record{}, fmt.Errorf("record %s: truncated value", id)
	}
	dim := int(binary.LittleEndian.Uint32(val))
	end := 4 + 4*dim
	if len(val) < end {
		return storage.Record{}, fmt.Errorf("record %s: truncated vector", id)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(val[4+4*i:]))
	}
	var body recordBody
	if err := json.Unmarshal(val[end:], &body); err != nil {
		return storage.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	return storage.Record{ID: id, Vector: vec, Text: body.Text, Metadata: body.Metadata}, nil
}

// Store keeps collections and their records in BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens a BadgerDB database at path. Creates the directory if it doesn't exist.
// An empty path opens an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").
			WithInMemory(true).
			WithMemTableSize(inMemoryMemTableSize)
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path).WithValueThreshold(valueThreshold)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreUnreachable, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return Open("", nil)
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Health reports whether the database is open.
func (s *Store) Health(ctx context.Context) error {
	if s.db.IsClosed() {
		return storage.ErrStoreUnreachable
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (*storage.Collection, error) {
	var c storage.Collection
	err := s.db.View(func(tx *badger.Txn) error {
		return readJSON(tx, collectionKey(name), &c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	return &c, nil
}

// CreateCollection registers a collection. Writers racing on the same name
// conflict at commit; the loser observes storage.ErrCollectionExists.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, distance storage.Distance) (*storage.Collection, error) {
	c := &storage.Collection{Name: name, Dimension: dimension, Distance: distance}

	err := s.db.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(collectionKey(name))
		if err == nil {
			return storage.ErrCollectionExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return tx.Set(collectionKey(name), data)
	})
	switch {
	case errors.Is(err, storage.ErrCollectionExists), errors.Is(err, badger.ErrConflict):
		return nil, storage.ErrCollectionExists
	case err != nil:
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return c, nil
}

// Upsert writes all records in one transaction: either every record lands or none.
// Existing ids are overwritten.
func (s *Store) Upsert(ctx context.Context, collection *storage.Collection, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(collection, records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *badger.Txn) error {
		for _, r := range records {
			data, err := encodeRecord(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
			}
			if err := tx.Set(recordKey(collection.Name, r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("%d records exceed the single write limit of %d bytes: %w",
			len(records), s.db.MaxBatchSize(), err)
	}
	if err != nil {
		return fmt.Errorf("failed to write %d records: %w", len(records), err)
	}
	return nil
}

// Records returns every record stored in the collection.
func (s *Store) Records(ctx context.Context, collection string) ([]storage.Record, error) {
	var out []storage.Record
	prefix := recordsPrefix(collection)

	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			id := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				r, err := decodeRecord(id, val)
				if err != nil {
					return err
				}
				out = append(out, r)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records of %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func readJSON(tx *badger.Txn, key []byte, v any) error {
	item, err := tx.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
