package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/signoff/model"
)

func testResponse(body string) Response {
	return Response{
		Status:      200,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(body),
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// storeCase runs the behaviour shared by every Store implementation.
func storeCase(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := FormatKey("escalateRequirement", "retry-1")

	t.Run("miss", func(t *testing.T) {
		resp, found, err := store.Check(ctx, FormatKey("x", "absent"), "h")
		if err != nil || found || resp != nil {
			t.Errorf("Check() = %v, %v, %v; want nil, false, nil", resp, found, err)
		}
	})

	t.Run("hit", func(t *testing.T) {
		if err := store.Save(ctx, key, "hash-a", testResponse(`{"id":"wf-1"}`), time.Minute); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
		resp, found, err := store.Check(ctx, key, "hash-a")
		if err != nil || !found {
			t.Fatalf("Check() found=%v err=%v", found, err)
		}
		if resp.Status != 200 || string(resp.Body) != `{"id":"wf-1"}` {
			t.Errorf("response = %+v", resp)
		}
		if resp.ContentType != "application/json; charset=utf-8" {
			t.Errorf("ContentType = %q", resp.ContentType)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		_, found, err := store.Check(ctx, key, "hash-b")
		if !found {
			t.Error("found = false, want true (key exists)")
		}
		var env *model.ErrorEnvelope
		if !errors.As(err, &env) || env.Code != model.ErrConflict {
			t.Errorf("error = %v, want CONFLICT envelope", err)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_ = store.Save(ctx, key, "hash-c", testResponse("second"), time.Minute)
		resp, _, err := store.Check(ctx, key, "hash-c")
		if err != nil || string(resp.Body) != "second" {
			t.Errorf("Check() = %+v, %v", resp, err)
		}
	})
}

// --- MemoryStore ---

func TestMemoryStore(t *testing.T) {
	storeCase(t, NewMemoryStore(nil))
}

func TestMemoryStore_expiry(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	_ = store.Save(ctx, "k", "h", testResponse("x"), time.Minute)
	now = now.Add(time.Minute)

	_, found, err := store.Check(ctx, "k", "h")
	if err != nil || found {
		t.Errorf("Check() after ttl found=%v err=%v, want miss", found, err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (expired entry removed)", store.Len())
	}
}

// --- RedisStore ---

func TestRedisStore(t *testing.T) {
	_, client := newTestRedis(t)
	storeCase(t, NewRedisStore(client))
}

func TestRedisStore_expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	_ = store.Save(ctx, "k", "h", testResponse("x"), time.Second)
	mr.FastForward(2 * time.Second)

	_, found, err := store.Check(ctx, "k", "h")
	if err != nil || found {
		t.Errorf("Check() after ttl found=%v err=%v, want miss", found, err)
	}
}

func TestRedisStore_corruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)
	_ = mr.Set("k", "not json")

	if _, _, err := store.Check(context.Background(), "k", "h"); err == nil {
		t.Error("expected decode error")
	}
}

func TestRedisStore_healthCheck(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
	mr.Close()
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail once redis is gone")
	}
}

func TestFormatKey(t *testing.T) {
	if got := FormatKey("submitDecision", "key/with/slashes"); got != "signoff:idem:submitDecision:key/with/slashes" {
		t.Errorf("FormatKey() = %q", got)
	}
}
