// Package dedup implements the ingestion dedup-lock keyed store (spec.md
// §3 "Dedup lock", §4.A): a small store, separate from the warehouse,
// mapping (user, batch-fetch-time) to ingestion metadata. Presence of the
// key means "already ingested." No TTL is required by the spec, but one
// is applied anyway (bounded by client retry windows) so the store does
// not grow unboundedly — Redis expiry is the natural fit here the way the
// pack's Redis-backed services use it.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shift-health/pipeline/pkg/models"
)

// defaultTTL bounds how long a dedup key survives. Spec.md §3 notes "TTL
// not required; keys are bounded by client batching rate" — a generous
// TTL well beyond any plausible client retry window satisfies that
// without keeping every key forever.
const defaultTTL = 24 * time.Hour

// ErrAlreadyClaimed is returned by Claim when the (user, fetchedAt) key
// was already present — the caller must treat the batch as a duplicate
// and answer with the record's original sample count (spec.md §4.B).
var ErrAlreadyClaimed = errors.New("dedup: key already claimed")

// Store is the Redis-backed dedup-lock claim store.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: defaultTTL}
}

// Claim attempts to atomically claim dedupKey for (userID, fetchedAt).
// On success it returns (nil, nil): the caller owns the write path. If
// the key was already claimed, it returns the existing record and
// ErrAlreadyClaimed. Contract: the claim must be observable before the
// ingestion trigger is published (spec.md §4.B) — callers must call
// Claim before the warehouse insert and the bus publish, never after.
func (s *Store) Claim(ctx context.Context, userID string, fetchedAt time.Time, rec models.DedupRecord) (*models.DedupRecord, error) {
	key := models.DedupKey(userID, fetchedAt)

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal dedup record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, key, payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim dedup key: %w", err)
	}
	if ok {
		return nil, nil
	}

	existing, err := s.Get(ctx, userID, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch existing dedup record after claim miss: %w", err)
	}
	return existing, ErrAlreadyClaimed
}

// Get returns the dedup record for (userID, fetchedAt), or nil if unclaimed.
func (s *Store) Get(ctx context.Context, userID string, fetchedAt time.Time) (*models.DedupRecord, error) {
	key := models.DedupKey(userID, fetchedAt)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dedup record: %w", err)
	}

	var rec models.DedupRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal dedup record: %w", err)
	}
	return &rec, nil
}
