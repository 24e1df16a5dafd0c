package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/videovault/videovault/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCacheVideoOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	duration := 12.5
	video := &models.Video{
		ID:        "video-1",
		Title:     "Holiday",
		ObjectKey: "videos/video-1/holiday.mp4",
		Duration:  &duration,
	}

	if err := cache.SetVideo(ctx, video, time.Minute); err != nil {
		t.Fatalf("SetVideo failed: %v", err)
	}

	got, err := cache.GetVideo(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Title != "Holiday" || got.Duration == nil || *got.Duration != 12.5 {
		t.Errorf("cached video mismatch: %+v", got)
	}

	// Invalidation removes the record and the size entry together.
	if err := cache.SetFileSize(ctx, "video-1", 2048, time.Minute); err != nil {
		t.Fatalf("SetFileSize failed: %v", err)
	}
	if err := cache.InvalidateVideo(ctx, "video-1"); err != nil {
		t.Fatalf("InvalidateVideo failed: %v", err)
	}

	got, err = cache.GetVideo(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetVideo after invalidate failed: %v", err)
	}
	if got != nil {
		t.Error("expected cache miss after invalidation")
	}

	if _, present, err := cache.GetFileSize(ctx, "video-1"); err != nil || present {
		t.Errorf("expected size miss after invalidation, present=%v err=%v", present, err)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	got, err := cache.GetVideo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil video on cache miss")
	}
}

func TestCacheFileSize(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	if err := cache.SetFileSize(ctx, "video-2", 1048576, time.Minute); err != nil {
		t.Fatalf("SetFileSize failed: %v", err)
	}

	size, present, err := cache.GetFileSize(ctx, "video-2")
	if err != nil {
		t.Fatalf("GetFileSize failed: %v", err)
	}
	if !present {
		t.Fatal("expected size to be present")
	}
	if size != 1048576 {
		t.Errorf("size = %d, want 1048576", size)
	}
}
