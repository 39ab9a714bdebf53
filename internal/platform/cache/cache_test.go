package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type mapStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type stats struct {
	TotalOrders int64 `json:"totalOrders"`
}

func TestJSONRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	kv := newMapStore()

	if err := SetJSON(ctx, kv, "dashboard:stats", stats{TotalOrders: 7}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if kv.ttls["dashboard:stats"] != time.Minute {
		t.Errorf("expected ttl to be forwarded, got %s", kv.ttls["dashboard:stats"])
	}

	var got stats
	hit, err := GetJSON(ctx, kv, "dashboard:stats", &got)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if got.TotalOrders != 7 {
		t.Errorf("expected 7, got %d", got.TotalOrders)
	}
}

func TestGetJSON_Miss(t *testing.T) {
	var got stats
	hit, err := GetJSON(context.Background(), Noop{}, "missing", &got)
	if err != nil || hit {
		t.Errorf("expected clean miss, got hit=%v err=%v", hit, err)
	}
}

func TestGetJSON_CorruptValue(t *testing.T) {
	kv := newMapStore()
	kv.data["k"] = "{not json"
	var got stats
	if _, err := GetJSON(context.Background(), kv, "k", &got); err == nil {
		t.Error("expected decode error")
	}
}

func TestRedisStore_UnreachableIsNotMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := NewRedisStore(client, "pathlab:").Get(context.Background(), "k")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Error("connection failures must not be reported as cache misses")
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not-a-url"); err == nil {
		t.Error("expected parse error")
	}
}
