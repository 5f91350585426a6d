package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCacheHelperRoundTrip(t *testing.T) {
	client := newTestClient(t)
	helper := NewCacheHelper(client, "exam:")
	ctx := context.Background()

	type payload struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	in := payload{ID: "e1", Name: "Algebra"}
	if err := helper.Set(ctx, "id:e1", in, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var out payload
	if err := helper.Get(ctx, "id:e1", &out); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestCacheHelperMiss(t *testing.T) {
	client := newTestClient(t)
	helper := NewCacheHelper(client, "exam:")

	var out string
	if err := helper.Get(context.Background(), "id:missing", &out); err != ErrCacheNotFound {
		t.Fatalf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelperNilClient(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	// A missing cache degrades to pass-through, never an outage.
	if err := helper.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("set on nil client should be a no-op, got %v", err)
	}
	var out string
	if err := helper.Get(ctx, "k", &out); err != ErrCacheNotAvailable {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}

func TestCacheOrExecute(t *testing.T) {
	client := newTestClient(t)
	helper := NewCacheHelper(client, "leaderboard:")
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return []string{"ana", "ben"}, nil
	}

	var first []string
	if err := helper.CacheOrExecute(ctx, "exam:e1", &first, time.Minute, fetch); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}
	if len(first) != 2 {
		t.Fatalf("unexpected result: %v", first)
	}

	// The async cache write needs a beat to land.
	deadline := time.Now().Add(time.Second)
	for {
		exists, err := helper.Exists(ctx, "exam:e1")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if exists {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cached value never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var second []string
	if err := helper.CacheOrExecute(ctx, "exam:e1", &second, time.Minute, fetch); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("second call should hit the cache, fetches: %d", calls)
	}
}

func TestInvalidatePattern(t *testing.T) {
	client := newTestClient(t)
	helper := NewCacheHelper(client, "question:")
	ctx := context.Background()

	if err := helper.Set(ctx, "exam:e1:all", "a", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := helper.Set(ctx, "exam:e2:all", "b", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := helper.InvalidatePattern(ctx, "exam:e1:*"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	if exists, _ := helper.Exists(ctx, "exam:e1:all"); exists {
		t.Error("matching key survived invalidation")
	}
	if exists, _ := helper.Exists(ctx, "exam:e2:all"); !exists {
		t.Error("non-matching key was dropped")
	}
}

func TestInvalidateLeaderboard(t *testing.T) {
	client := newTestClient(t)
	cm := NewCacheManager(client)
	ctx := context.Background()

	if err := cm.Leaderboard.Set(ctx, "exam:e1", "ranking", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cm.InvalidateLeaderboard(ctx, "e1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if exists, _ := cm.Leaderboard.Exists(ctx, "exam:e1"); exists {
		t.Error("leaderboard cache survived invalidation")
	}
}
