package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/videovault/videovault/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health pings the underlying pool.
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Videos

// CreateVideo creates a new video record
func (r *Repository) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.New().String()
	}

	query := `
		INSERT INTO videos (id, title, object_key, thumbnail_key, duration, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		video.ID, video.Title, video.ObjectKey, video.ThumbnailKey,
		video.Duration, video.FileSize,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a video by ID
func (r *Repository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video

	query := `
		SELECT id, title, object_key, thumbnail_key, duration, file_size, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&video.ID, &video.Title, &video.ObjectKey, &video.ThumbnailKey,
		&video.Duration, &video.FileSize, &video.CreatedAt, &video.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}

// UpdateVideo updates a video record
func (r *Repository) UpdateVideo(ctx context.Context, video *models.Video) error {
	query := `
		UPDATE videos
		SET title = $2, object_key = $3, thumbnail_key = $4, duration = $5,
		    file_size = $6, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		video.ID, video.Title, video.ObjectKey, video.ThumbnailKey,
		video.Duration, video.FileSize,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListVideos retrieves videos with pagination, newest first
func (r *Repository) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error) {
	query := `
		SELECT id, title, object_key, thumbnail_key, duration, file_size, created_at, updated_at
		FROM videos
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		var video models.Video
		err := rows.Scan(
			&video.ID, &video.Title, &video.ObjectKey, &video.ThumbnailKey,
			&video.Duration, &video.FileSize, &video.CreatedAt, &video.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, &video)
	}

	return videos, nil
}

// DeleteVideo removes a video record. Transcode records cascade at the
// database level; callers are responsible for removing stored objects,
// which they collect before calling this.
func (r *Repository) DeleteVideo(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transcodes

// GetOrCreateTranscode returns the transcode record for (video, format),
// creating it if absent. The UNIQUE constraint guarantees at most one record
// per pair even under concurrent calls: a losing insert falls through to the
// re-select.
func (r *Repository) GetOrCreateTranscode(ctx context.Context, videoID string, format models.MediaFormat, quality models.Quality) (*models.Transcode, error) {
	insert := `
		INSERT INTO transcodes (id, video_id, format, quality)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id, format) DO NOTHING
	`

	if _, err := r.db.Pool.Exec(ctx, insert, uuid.New().String(), videoID, format, quality); err != nil {
		return nil, fmt.Errorf("failed to create transcode: %w", err)
	}

	var t models.Transcode
	query := `
		SELECT id, video_id, format, quality, processing, output_key, error_message, created_at, updated_at
		FROM transcodes
		WHERE video_id = $1 AND format = $2
	`

	err := r.db.Pool.QueryRow(ctx, query, videoID, format).Scan(
		&t.ID, &t.VideoID, &t.Format, &t.Quality, &t.Processing,
		&t.OutputKey, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcode: %w", err)
	}

	return &t, nil
}

// GetTranscode retrieves a transcode record by ID
func (r *Repository) GetTranscode(ctx context.Context, id string) (*models.Transcode, error) {
	var t models.Transcode

	query := `
		SELECT id, video_id, format, quality, processing, output_key, error_message, created_at, updated_at
		FROM transcodes
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.VideoID, &t.Format, &t.Quality, &t.Processing,
		&t.OutputKey, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcode: %w", err)
	}

	return &t, nil
}

// GetTranscodesByVideoID retrieves all transcode records for a video
func (r *Repository) GetTranscodesByVideoID(ctx context.Context, videoID string) ([]*models.Transcode, error) {
	query := `
		SELECT id, video_id, format, quality, processing, output_key, error_message, created_at, updated_at
		FROM transcodes
		WHERE video_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcodes: %w", err)
	}
	defer rows.Close()

	var transcodes []*models.Transcode
	for rows.Next() {
		var t models.Transcode
		err := rows.Scan(
			&t.ID, &t.VideoID, &t.Format, &t.Quality, &t.Processing,
			&t.OutputKey, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcode: %w", err)
		}
		transcodes = append(transcodes, &t)
	}

	return transcodes, nil
}

// TryLockTranscode atomically sets the processing flag if it is clear,
// also resetting the error message and quality for the new attempt. Returns
// false when another encode already holds the lock. This is the persisted
// write-then-work lock: it must succeed before the encoder is invoked.
func (r *Repository) TryLockTranscode(ctx context.Context, id string, quality models.Quality) (bool, error) {
	query := `
		UPDATE transcodes
		SET processing = TRUE, error_message = '', quality = $2, updated_at = now()
		WHERE id = $1 AND processing = FALSE
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, quality)
	if err != nil {
		return false, fmt.Errorf("failed to lock transcode: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// FinishTranscodeSuccess moves a record to the terminal success state.
func (r *Repository) FinishTranscodeSuccess(ctx context.Context, id, outputKey string) error {
	query := `
		UPDATE transcodes
		SET processing = FALSE, output_key = $2, error_message = '', updated_at = now()
		WHERE id = $1
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, outputKey); err != nil {
		return fmt.Errorf("failed to finish transcode: %w", err)
	}
	return nil
}

// FinishTranscodeFailure moves a record to the terminal failure state,
// clearing any previous output reference.
func (r *Repository) FinishTranscodeFailure(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE transcodes
		SET processing = FALSE, output_key = '', error_message = $2, updated_at = now()
		WHERE id = $1
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, errorMessage); err != nil {
		return fmt.Errorf("failed to finish transcode: %w", err)
	}
	return nil
}
