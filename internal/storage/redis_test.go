package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *MetadataCache {
	t.Helper()
	srv := miniredis.RunT(t)
	return NewMetadataCache(srv.Addr())
}

func TestMetadataCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	images := []string{"https://example.com/a.jpg", "https://cdn.example.com/b.jpg"}
	cache.Set(ctx, "https://example.com/product", images, time.Minute)

	got, ok := cache.Get(ctx, "https://example.com/product")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !reflect.DeepEqual(got, images) {
		t.Errorf("got %v, want %v", got, images)
	}
}

func TestMetadataCacheMiss(t *testing.T) {
	cache := newTestCache(t)

	if _, ok := cache.Get(context.Background(), "https://example.com/unseen"); ok {
		t.Error("expected cache miss")
	}
}

func TestMetadataCacheKeyedByFullURL(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com/a", []string{"https://example.com/1.jpg"}, time.Minute)
	if _, ok := cache.Get(ctx, "https://example.com/a?variant=2"); ok {
		t.Error("expected different query string to miss")
	}
}

func TestMetadataCacheEmptyListCached(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com/no-images", []string{}, time.Minute)
	got, ok := cache.Get(ctx, "https://example.com/no-images")
	if !ok {
		t.Fatal("expected cache hit for empty result")
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *MetadataCache

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("nil Ping returned %v", err)
	}
	cache.Set(context.Background(), "https://example.com/", []string{"x"}, time.Minute)
	if _, ok := cache.Get(context.Background(), "https://example.com/"); ok {
		t.Error("nil cache must always miss")
	}
}
