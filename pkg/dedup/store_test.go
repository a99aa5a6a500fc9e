package dedup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shift-health/pipeline/pkg/dedup"
	"github.com/shift-health/pipeline/pkg/models"
)

func newTestStore(t *testing.T) *dedup.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return dedup.New(rdb)
}

func TestStore_ClaimFirstSucceeds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	existing, err := store.Claim(ctx, "user-1", fetchedAt, models.DedupRecord{TraceID: "trace-1", Samples: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existing != nil {
		t.Fatalf("expected nil on first claim, got %+v", existing)
	}
}

func TestStore_ClaimSecondReturnsExistingRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.Claim(ctx, "user-1", fetchedAt, models.DedupRecord{TraceID: "trace-1", Samples: 5}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	existing, err := store.Claim(ctx, "user-1", fetchedAt, models.DedupRecord{TraceID: "trace-2", Samples: 99})
	if !errors.Is(err, dedup.ErrAlreadyClaimed) {
		t.Fatalf("got err %v, want ErrAlreadyClaimed", err)
	}
	if existing == nil || existing.TraceID != "trace-1" || existing.Samples != 5 {
		t.Fatalf("got %+v, want the original record (trace-1, 5 samples)", existing)
	}
}

func TestStore_DistinctFetchTimesDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Claim(ctx, "user-1", time.Unix(0, 0), models.DedupRecord{Samples: 1}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	existing, err := store.Claim(ctx, "user-1", time.Unix(1, 0), models.DedupRecord{Samples: 2})
	if err != nil {
		t.Fatalf("unexpected error for a distinct fetched_at: %v", err)
	}
	if existing != nil {
		t.Fatalf("expected nil for a distinct fetched_at key, got %+v", existing)
	}
}

func TestStore_GetUnclaimedReturnsNil(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Get(context.Background(), "nobody", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("got %+v, want nil", rec)
	}
}
