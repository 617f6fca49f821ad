package datastore

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/rowjay/docbackup/internal/document"
)

const (
	collectionKeyPrefix = "coll:"
	documentKeyPrefix   = "doc:"
)

// Badger stores collections in an embedded Badger database. Every document
// lives under doc:<collection>\x00<seq>, seq being a big-endian insertion
// counter, so a prefix scan returns documents in insertion order.
type Badger struct {
	db *badger.DB
	mu sync.Mutex
}

// OpenBadger opens (or creates) the store at path. An empty path opens an
// in-memory store.
func OpenBadger(path string, log zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{log: log.With().Str("component", "badger").Logger()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(collectionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), collectionKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (b *Badger) GetAllDocuments(ctx context.Context, collection string) ([]document.Document, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	docs := []document.Document{}
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := documentPrefix(collection)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			docs = append(docs, document.Document(val))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	return docs, nil
}

func (b *Badger) DeleteAllDocuments(ctx context.Context, collection string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	keys, err := b.documentKeys(ctx, collection)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete collection %s: %w", collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

func (b *Badger) InsertMany(ctx context.Context, collection string, docs []document.Document) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.nextSequence(collection)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set([]byte(collectionKeyPrefix+collection), nil); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	for i, doc := range docs {
		if err := wb.Set(documentKey(collection, next+uint64(i)), doc); err != nil {
			return fmt.Errorf("insert into %s: %w", collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (b *Badger) documentKeys(ctx context.Context, collection string) ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := documentPrefix(collection)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *Badger) nextSequence(collection string) (uint64, error) {
	var next uint64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := documentPrefix(collection)
		it.Seek(append(prefix, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff))
		if it.ValidForPrefix(prefix) {
			key := it.Item().Key()
			next = binary.BigEndian.Uint64(key[len(prefix):]) + 1
		}
		return nil
	})
	return next, err
}

func documentPrefix(collection string) []byte {
	prefix := make([]byte, 0, len(documentKeyPrefix)+len(collection)+1)
	prefix = append(prefix, documentKeyPrefix...)
	prefix = append(prefix, collection...)
	return append(prefix, 0)
}

func documentKey(collection string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(documentPrefix(collection), seq)
}

type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
