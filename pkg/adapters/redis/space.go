// Package redis provides a tuple space and a distributed locker backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the space.
const DefaultPrefix = "weft:space:"

const scanBatch = 256

// Space implements ports.TupleSpace using one Redis list per channel.
// RPUSH, LPOP and LINDEX are atomic on the server, which gives FIFO order
// across every client sharing the prefix.
type Space struct {
	client *backend.Client
	prefix string
}

var (
	_ ports.TupleSpace = (*Space)(nil)
	_ ports.Scoped     = (*Space)(nil)
)

type Option func(*Space)

// WithPrefix sets the key prefix for channels.
func WithPrefix(prefix string) Option {
	return func(s *Space) {
		s.prefix = prefix
	}
}

// New creates a Redis space with its own client.
func New(address, password string, db int, opts ...Option) *Space {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis space from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Space {
	s := &Space{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client so a Locker can share the connection.
func (s *Space) Client() *backend.Client {
	return s.client
}

func (s *Space) key(name domain.Name) string {
	return s.prefix + name.String()
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
	if err := s.client.RPush(ctx, s.key(name), data).Err(); err != nil {
		return fmt.Errorf("failed to push to redis: %w", err)
	}
	return nil
}

// Ask removes and returns the oldest value of channel.
func (s *Space) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}
	data, err := s.client.LPop(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrEmpty
		}
		return nil, fmt.Errorf("failed to pop from redis: %w", err)
	}
	return domain.UnmarshalValue(data)
}

// Peek returns the oldest value of channel without removing it.
func (s *Space) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}
	data, err := s.client.LIndex(ctx, s.key(name), 0).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrEmpty
		}
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	return domain.UnmarshalValue(data)
}

// Channels lists the non-empty channels of kind within scope. Redis deletes a
// list once its last element is popped, so every matching key is non-empty.
func (s *Space) Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error) {
	keys, err := s.scan(ctx, s.prefix+domain.NewName(kind, "").String()+"*")
	if err != nil {
		return nil, err
	}
	var out []domain.Name
	for _, key := range keys {
		name, err := domain.ParseName(strings.TrimPrefix(key, s.prefix))
		if err != nil || name.NS != kind || !name.Within(scope) {
			continue
		}
		out = append(out, name)
	}
	slices.SortFunc(out, func(a, b domain.Name) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

func (s *Space) scan(ctx context.Context, match string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan redis keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Reset deletes every channel under the prefix.
func (s *Space) Reset(ctx context.Context) error {
	keys, err := s.scan(ctx, s.prefix+"@*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset redis space: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Space) Close() error {
	return s.client.Close()
}
