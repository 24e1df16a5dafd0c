package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/videovault/videovault/internal/cache"
	"github.com/videovault/videovault/internal/config"
	"github.com/videovault/videovault/internal/database"
	"github.com/videovault/videovault/internal/jobs"
	"github.com/videovault/videovault/internal/logging"
	"github.com/videovault/videovault/internal/metrics"
	"github.com/videovault/videovault/internal/storage"
	"github.com/videovault/videovault/pkg/models"
)

type API struct {
	repo    *database.Repository
	storage *storage.Storage
	cache   *cache.Cache
	jobs    *jobs.Service
	cfg     *config.Config
	log     *logging.Logger
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// uploadVideo stores the source object, creates the video record and
// schedules metadata extraction (which in turn schedules the default-format
// transcode).
func (api *API) uploadVideo(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		return
	}

	if file.Size > api.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	tempDir, err := os.MkdirTemp("", "upload")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	video := &models.Video{
		ID:    uuid.New().String(),
		Title: title,
	}
	video.ObjectKey = fmt.Sprintf("videos/%s/%s", video.ID, filepath.Base(file.Filename))

	if err := api.storage.UploadFile(c.Request.Context(), video.ObjectKey, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	if err := api.repo.CreateVideo(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create video: %v", err)})
		return
	}

	metrics.VideoUploadsTotal.Inc()

	// The upload itself succeeded; a dispatch failure only delays metadata.
	if err := api.jobs.VideoSaved(c.Request.Context(), video.ID, true); err != nil {
		api.log.WithError(err).WithVideoID(video.ID).Warn("failed to schedule metadata extraction")
	}

	c.JSON(http.StatusCreated, video)
}

func (api *API) getVideo(c *gin.Context) {
	videoID := c.Param("id")

	if api.cache != nil {
		video, err := api.cache.GetVideo(c.Request.Context(), videoID)
		if err != nil {
			api.log.WithError(err).WithVideoID(videoID).Warn("cache lookup failed")
		} else if video != nil {
			c.JSON(http.StatusOK, video)
			return
		}
	}

	video, err := api.repo.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	api.fillFileSize(c.Request.Context(), video)

	if api.cache != nil {
		if err := api.cache.SetVideo(c.Request.Context(), video, api.cfg.Redis.TTL); err != nil {
			api.log.WithError(err).WithVideoID(videoID).Warn("cache store failed")
		}
	}

	c.JSON(http.StatusOK, video)
}

// fillFileSize computes the file size lazily for records whose metadata task
// has not run yet, caching the result so the stored object is not stat'd on
// every read.
func (api *API) fillFileSize(ctx context.Context, video *models.Video) {
	if video.FileSize != nil {
		return
	}

	if api.cache != nil {
		if size, ok, err := api.cache.GetFileSize(ctx, video.ID); err == nil && ok {
			video.FileSize = &size
			return
		}
	}

	size, err := api.storage.Size(ctx, video.ObjectKey)
	if err != nil {
		api.log.WithError(err).WithVideoID(video.ID).Warn("failed to stat stored file")
		return
	}
	video.FileSize = &size

	if api.cache != nil {
		if err := api.cache.SetFileSize(ctx, video.ID, size, api.cfg.Redis.TTL); err != nil {
			api.log.WithError(err).WithVideoID(video.ID).Warn("failed to cache file size")
		}
	}
}

func (api *API) listVideos(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	videos, err := api.repo.ListVideos(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": videos,
		"limit":  limit,
		"offset": offset,
	})
}

// deleteVideo removes the record, its transcodes and every stored object.
func (api *API) deleteVideo(c *gin.Context) {
	videoID := c.Param("id")

	if err := api.jobs.DeleteVideo(c.Request.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete video: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully", "video_id": videoID})
}

// requestTranscode asks for a re-encode of a video into a target format.
// A request for a pair that is already processing is dropped and the
// existing record returned.
func (api *API) requestTranscode(c *gin.Context) {
	videoID := c.Param("id")

	var req struct {
		Format  models.MediaFormat `json:"format" binding:"required"`
		Quality models.Quality     `json:"quality"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Quality == "" {
		req.Quality = models.QualityDefault
	}
	if !req.Format.Valid() || !req.Quality.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown format or quality"})
		return
	}

	if _, err := api.repo.GetVideo(c.Request.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	transcode, err := api.jobs.RequestTranscode(c.Request.Context(), videoID, req.Format, req.Quality)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to request transcode: %v", err)})
		return
	}

	c.JSON(http.StatusAccepted, transcode)
}

// listTranscodes returns the settled transcode records for a video; in-flight
// records are omitted since their output and error fields are not meaningful
// yet.
func (api *API) listTranscodes(c *gin.Context) {
	videoID := c.Param("id")

	if _, err := api.repo.GetVideo(c.Request.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	all, err := api.repo.GetTranscodesByVideoID(c.Request.Context(), videoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	settled := make([]*models.Transcode, 0, len(all))
	for _, t := range all {
		if t.Processing {
			continue
		}
		settled = append(settled, t)
	}

	c.JSON(http.StatusOK, gin.H{"transcodes": settled})
}

// getVideoURL returns a short-lived presigned URL for the source object.
func (api *API) getVideoURL(c *gin.Context) {
	videoID := c.Param("id")

	video, err := api.repo.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	url, err := api.storage.GetURL(c.Request.Context(), video.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_id": videoID, "url": url})
}

// checkSource reports whether the video's source object is still present in
// storage, for diagnosing records whose file went missing.
func (api *API) checkSource(c *gin.Context) {
	videoID := c.Param("id")

	exists, err := api.jobs.SourceExists(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_id": videoID, "source_exists": exists})
}
