// Package badger provides a tuple space on top of BadgerDB, an embedded
// ordered key-value store. Each queued value is one key; keys of a channel
// share a prefix and end in a sequence number, so a prefix scan yields the
// channel in FIFO order.
//
// The space runs in memory by default. Durable storage across restarts is not
// a goal; a Path is accepted for large working sets that do not fit in RAM.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

// DefaultPrefix namespaces every key written by the space.
const DefaultPrefix = "weft/"

// seqBandwidth is the number of sequence numbers leased from badger at once.
const seqBandwidth = 1000

// Config holds configuration for a badger-backed space.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM.
	InMemory bool

	// Prefix namespaces the keys of this space inside the database.
	Prefix string

	// Logger receives BadgerDB's internal logs. If nil they are discarded.
	Logger *slog.Logger
}

// InMemoryConfig returns the configuration used by tests and by default.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
		Prefix:   DefaultPrefix,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Space implements ports.TupleSpace and ports.Scoped on BadgerDB.
//
// Key layout: <prefix> 'q' <ns:1> <len(label):4 BE> <label> <seq:8 BE>.
// The length field keeps one channel's keys from prefixing another's.
type Space struct {
	mu     sync.Mutex
	db     *badger.DB
	seq    *badger.Sequence
	prefix []byte
	owned  bool
}

var (
	_ ports.TupleSpace = (*Space)(nil)
	_ ports.Scoped     = (*Space)(nil)
)

// Open opens a database according to cfg and builds a space on it. The space
// owns the database and closes it on Close.
func Open(cfg Config) (*Space, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s, err := NewFromDB(db, cfg.Prefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// OpenInMemory opens an in-memory space with default settings.
func OpenInMemory() (*Space, error) {
	return Open(InMemoryConfig())
}

// NewFromDB builds a space on an existing database. The caller keeps ownership
// of db. At most one Space may use a given prefix at a time.
func NewFromDB(db *badger.DB, prefix string) (*Space, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	seq, err := db.GetSequence([]byte(prefix+"seq"), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("lease badger sequence: %w", err)
	}
	return &Space{
		db:     db,
		seq:    seq,
		prefix: []byte(prefix),
	}, nil
}

func (s *Space) nsPrefix(ns uint8) []byte {
	k := make([]byte, 0, len(s.prefix)+2)
	k = append(k, s.prefix...)
	return append(k, 'q', ns)
}

func (s *Space) channelPrefix(name domain.Name) []byte {
	k := s.nsPrefix(name.NS)
	k = binary.BigEndian.AppendUint32(k, uint32(len(name.Label)))
	return append(k, name.Label...)
}

// labelOf extracts the label from a full key under nsPrefix.
func labelOf(key []byte, nsLen int) (string, bool) {
	rest := key[nsLen:]
	if len(rest) < 4 {
		return "", false
	}
	n := int(binary.BigEndian.Uint32(rest))
	rest = rest[4:]
	if len(rest) != n+8 {
		return "", false
	}
	return string(rest[:n]), true
}

// Tell appends v to channel.
func (s *Space) Tell(ctx context.Context, kind uint8, channel string, v domain.Value) error {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return err
	}
	data, err := domain.MarshalValue(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	key := binary.BigEndian.AppendUint64(s.channelPrefix(name), n)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("failed to write to badger: %w", err)
	}
	return nil
}

// front returns the key and value of the oldest entry under prefix.
func front(txn *badger.Txn, prefix []byte) ([]byte, []byte, error) {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
	defer it.Close()

	it.Rewind()
	if !it.Valid() {
		return nil, nil, domain.ErrEmpty
	}
	item := it.Item()
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	return item.KeyCopy(nil), val, nil
}

// Ask removes and returns the oldest value of channel.
func (s *Space) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err = s.db.Update(func(txn *badger.Txn) error {
		key, val, err := front(txn, s.channelPrefix(name))
		if err != nil {
			return err
		}
		data = val
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmpty) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to pop from badger: %w", err)
	}
	return domain.UnmarshalValue(data)
}

// Peek returns the oldest value of channel without removing it.
func (s *Space) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		_, val, err := front(txn, s.channelPrefix(name))
		data = val
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmpty) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read from badger: %w", err)
	}
	return domain.UnmarshalValue(data)
}

// Channels lists the non-empty channels of kind within scope, sorted by label.
func (s *Space) Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error) {
	prefix := s.nsPrefix(kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []domain.Name
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			label, ok := labelOf(it.Item().Key(), len(prefix))
			if !ok || seen[label] {
				continue
			}
			seen[label] = true
			if name := domain.NewName(kind, label); name.Within(scope) {
				out = append(out, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list badger channels: %w", err)
	}
	slices.SortFunc(out, func(a, b domain.Name) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

// Reset drops every queued value of this space.
func (s *Space) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := append(append([]byte{}, s.prefix...), 'q')
	if err := s.db.DropPrefix(queued); err != nil {
		return fmt.Errorf("failed to reset badger space: %w", err)
	}
	return nil
}

// Close returns unused sequence numbers and, when the space opened the
// database itself, closes it.
func (s *Space) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.seq.Release()
	if s.owned {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
