package jobcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	want := JobStatus{Status: "in-progress", CancellationRequested: false, VersionNumber: 2}

	if err := store.Set(ctx, "doc-123", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "doc-123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached status, got miss")
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	got, err := store.Get(context.Background(), "missing-doc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected cache miss, got %+v", *got)
	}
}

func TestEntryExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "doc-expiring", JobStatus{Status: "pending"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(statusTTL + time.Second)

	got, err := store.Get(ctx, "doc-expiring")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected entry to expire, got %+v", *got)
	}
}

func TestInvalidate(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "doc-inv", JobStatus{Status: "complete", VersionNumber: 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Invalidate(ctx, "doc-inv"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, err := store.Get(ctx, "doc-inv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss after invalidation, got %+v", *got)
	}
}

func TestInvalidateNonExistent(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if err := store.Invalidate(context.Background(), "never-cached"); err != nil {
		t.Errorf("Invalidate for missing key failed: %v", err)
	}
}

func TestDocumentIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "doc-a", JobStatus{Status: "pending"}); err != nil {
		t.Fatalf("Set doc-a failed: %v", err)
	}
	if err := store.Set(ctx, "doc-b", JobStatus{Status: "complete", VersionNumber: 3}); err != nil {
		t.Fatalf("Set doc-b failed: %v", err)
	}

	if err := store.Invalidate(ctx, "doc-a"); err != nil {
		t.Fatalf("Invalidate doc-a failed: %v", err)
	}

	gotA, err := store.Get(ctx, "doc-a")
	if err != nil {
		t.Fatalf("Get doc-a failed: %v", err)
	}
	if gotA != nil {
		t.Error("expected doc-a to be invalidated")
	}

	gotB, err := store.Get(ctx, "doc-b")
	if err != nil {
		t.Fatalf("Get doc-b failed: %v", err)
	}
	if gotB == nil || gotB.Status != "complete" {
		t.Errorf("doc-b should be untouched, got %+v", gotB)
	}
}
