package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/videovault/videovault/pkg/models"
)

// Cache provides read caching for video records and their lazily computed
// file sizes, backed by Redis.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetVideo caches a video record
func (c *Cache) SetVideo(ctx context.Context, video *models.Video, ttl time.Duration) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	return c.client.Set(ctx, videoKey(video.ID), data, ttl).Err()
}

// GetVideo retrieves a cached video record. A nil video with nil error is a
// cache miss.
func (c *Cache) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	data, err := c.client.Get(ctx, videoKey(videoID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get video from cache: %w", err)
	}

	var video models.Video
	if err := json.Unmarshal(data, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	return &video, nil
}

// InvalidateVideo removes a video record and its file size from the cache.
// Called whenever metadata is refreshed or the video is deleted.
func (c *Cache) InvalidateVideo(ctx context.Context, videoID string) error {
	return c.client.Del(ctx, videoKey(videoID), fileSizeKey(videoID)).Err()
}

// SetFileSize caches a lazily computed file size
func (c *Cache) SetFileSize(ctx context.Context, videoID string, size int64, ttl time.Duration) error {
	return c.client.Set(ctx, fileSizeKey(videoID), strconv.FormatInt(size, 10), ttl).Err()
}

// GetFileSize retrieves a cached file size. The second return value reports
// presence.
func (c *Cache) GetFileSize(ctx context.Context, videoID string) (int64, bool, error) {
	data, err := c.client.Get(ctx, fileSizeKey(videoID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get file size from cache: %w", err)
	}

	size, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse cached file size: %w", err)
	}

	return size, true, nil
}

func videoKey(videoID string) string {
	return fmt.Sprintf("video:%s", videoID)
}

func fileSizeKey(videoID string) string {
	return fmt.Sprintf("video:size:%s", videoID)
}
