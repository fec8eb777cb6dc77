package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "mc:run:"
	pendingMarker = "pending"
)

// Reservation is the outcome of Reserve. Exactly one of the three states holds:
// the caller acquired the key, another writer holds it, or a run was already committed under it.
type Reservation struct {
	Acquired bool
	Pending  bool
	RunId    int32
}

// Store maps request keys to committed run ids so a retried import does not
// write the same run twice. A pending marker lives for lease, a committed run
// id for ttl.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	lease  time.Duration
	prefix string
}

// NewStore caps lease at ttl.
func NewStore(client *redis.Client, ttl, lease time.Duration) *Store {
	return &Store{client: client, ttl: ttl, lease: min(lease, ttl), prefix: DefaultPrefix}
}

// Connect opens a client and checks the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", addr, err)
	}

	return client, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Reserve claims k for the caller with a pending marker, or reports who owns it.
// A marker whose writer never finished expires after the lease.
func (s *Store) Reserve(ctx context.Context, k string) (Reservation, error) {
	// the key can expire between SETNX and GET, one retry covers that
	for range 2 {
		ok, err := s.client.SetNX(ctx, s.key(k), pendingMarker, s.lease).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("error reserving idempotency key %s: %w", k, err)
		}
		if ok {
			return Reservation{Acquired: true}, nil
		}

		val, err := s.client.Get(ctx, s.key(k)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Reservation{}, fmt.Errorf("error reading idempotency key %s: %w", k, err)
		}

		if val == pendingMarker {
			return Reservation{Pending: true}, nil
		}

		id, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency key %s holds unexpected value %q: %w", k, val, err)
		}
		return Reservation{RunId: int32(id)}, nil
	}

	return Reservation{}, fmt.Errorf("idempotency key %s kept expiring during reservation", k)
}

// Complete records the committed run id under k.
func (s *Store) Complete(ctx context.Context, k string, runId int32) error {
	if err := s.client.Set(ctx, s.key(k), strconv.FormatInt(int64(runId), 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("error completing idempotency key %s: %w", k, err)
	}
	return nil
}

// Release drops k so the next attempt can claim it.
func (s *Store) Release(ctx context.Context, k string) error {
	if err := s.client.Del(ctx, s.key(k)).Err(); err != nil {
		return fmt.Errorf("error releasing idempotency key %s: %w", k, err)
	}
	return nil
}
