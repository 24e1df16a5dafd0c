package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/videovault/videovault/internal/logging"
	"github.com/videovault/videovault/internal/metrics"
	"github.com/videovault/videovault/internal/tracing"
	"github.com/videovault/videovault/pkg/models"
)

// Repository is the persistence surface the job service needs.
type Repository interface {
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	UpdateVideo(ctx context.Context, video *models.Video) error
	DeleteVideo(ctx context.Context, id string) error
	GetOrCreateTranscode(ctx context.Context, videoID string, format models.MediaFormat, quality models.Quality) (*models.Transcode, error)
	GetTranscode(ctx context.Context, id string) (*models.Transcode, error)
	GetTranscodesByVideoID(ctx context.Context, videoID string) ([]*models.Transcode, error)
	TryLockTranscode(ctx context.Context, id string, quality models.Quality) (bool, error)
	FinishTranscodeSuccess(ctx context.Context, id, outputKey string) error
	FinishTranscodeFailure(ctx context.Context, id, errorMessage string) error
}

// BlobStore is the storage collaborator: scoped local access plus writes
// under generated keys.
type BlobStore interface {
	WithLocalCopy(ctx context.Context, objectKey string, fn func(localPath string) error) error
	UploadBytes(ctx context.Context, objectKey string, data []byte) error
	Delete(ctx context.Context, objectKey string) error
	Size(ctx context.Context, objectKey string) (int64, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
}

// TaskQueue is the fire-and-forget job submission collaborator.
type TaskQueue interface {
	PublishTask(ctx context.Context, task models.Task) error
}

// Encoder is the external encoder/prober surface.
type Encoder interface {
	Installed() bool
	Duration(ctx context.Context, inputPath string) (float64, bool)
	VideoCodec(ctx context.Context, inputPath string) (string, bool)
	Thumbnail(ctx context.Context, inputPath string) ([]byte, string, bool)
	Transcode(ctx context.Context, inputPath string, format models.MediaFormat, quality models.Quality) ([]byte, string, error)
}

// VideoCache invalidates cached video records when metadata changes.
// May be nil when no cache is configured.
type VideoCache interface {
	InvalidateVideo(ctx context.Context, videoID string) error
}

// Service runs the transcode job lifecycle: dispatching work on upload,
// extracting metadata, and executing encodes under the per-(video, format)
// single-flight lock.
type Service struct {
	repo  Repository
	blobs BlobStore
	queue TaskQueue
	enc   Encoder
	cache VideoCache
	log   *logging.Logger
}

// NewService creates a job service.
func NewService(repo Repository, blobs BlobStore, queue TaskQueue, enc Encoder, cache VideoCache, log *logging.Logger) *Service {
	return &Service{
		repo:  repo,
		blobs: blobs,
		queue: queue,
		enc:   enc,
		cache: cache,
		log:   log,
	}
}

// CheckEncoder verifies the external encoder at startup. With require set a
// missing binary is a configuration error; otherwise it degrades to a
// warning and per-job absent results.
func (s *Service) CheckEncoder(require bool) error {
	if s.enc.Installed() {
		return nil
	}
	if require {
		return fmt.Errorf("ffmpeg could not be found on this system and ffmpeg.require is set")
	}
	s.log.Warn("ffmpeg could not be found on this system, transcoding will be degraded")
	return nil
}

// VideoSaved dispatches jobs after an upload or edit. When the file
// reference changed, metadata extraction is scheduled; the default-format
// transcode follows only once that task completes, preserving strict start
// ordering between the two.
func (s *Service) VideoSaved(ctx context.Context, videoID string, fileChanged bool) error {
	if !fileChanged {
		return nil
	}

	s.log.WithVideoID(videoID).Debug("file reference changed, scheduling metadata extraction")
	return s.queue.PublishTask(ctx, models.Task{
		Name:    models.TaskVideoMetadata,
		VideoID: videoID,
	})
}

// HandleTask routes a queue task to its handler. Task failures are recorded
// on the entities they touch and logged; nothing propagates across the job
// boundary.
func (s *Service) HandleTask(ctx context.Context, task models.Task) error {
	span, ctx := tracing.StartSpan(ctx, task.Name)
	defer span.Finish()
	tracing.SetTag(span, "video_id", task.VideoID)
	tracing.SetTag(span, "transcode_id", task.TranscodeID)

	var err error
	switch task.Name {
	case models.TaskVideoMetadata:
		err = s.handleMetadata(ctx, task.VideoID)
	case models.TaskDefaultTranscode:
		err = s.handleDefaultTranscode(ctx, task.VideoID)
	case models.TaskTranscodeRun:
		err = s.handleTranscodeRun(ctx, task.TranscodeID)
	default:
		err = fmt.Errorf("unknown task %q", task.Name)
	}

	status := "ok"
	if err != nil {
		status = "error"
		tracing.LogError(span, err)
		s.log.WithTask(task.Name).WithError(err).Error("task failed")
	}
	metrics.TasksProcessedTotal.WithLabelValues(task.Name, status).Inc()

	return err
}

// handleMetadata refreshes duration, thumbnail and file size from the stored
// file, then schedules the default transcode. The transcode is scheduled
// even when extraction fails: the coupling is at the scheduling level only.
func (s *Service) handleMetadata(ctx context.Context, videoID string) error {
	err := s.ExtractMetadata(ctx, videoID)

	if pubErr := s.queue.PublishTask(ctx, models.Task{
		Name:    models.TaskDefaultTranscode,
		VideoID: videoID,
	}); pubErr != nil {
		s.log.WithVideoID(videoID).WithError(pubErr).Error("failed to schedule default transcode")
		if err == nil {
			err = pubErr
		}
	}

	return err
}

// ExtractMetadata probes the stored file and overwrites the video's derived
// fields with fresh values. Absent probe results are tolerated: the file
// size is computed from the stored object even when the tool is missing.
func (s *Service) ExtractMetadata(ctx context.Context, videoID string) error {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	log := s.log.WithVideoID(videoID)
	log.Debug("extracting video metadata")

	video.ResetDerived()

	if s.enc.Installed() {
		err := s.blobs.WithLocalCopy(ctx, video.ObjectKey, func(localPath string) error {
			if seconds, ok := s.enc.Duration(ctx, localPath); ok {
				video.Duration = &seconds
			} else {
				metrics.ProbeFailuresTotal.WithLabelValues("duration").Inc()
			}

			if codec, ok := s.enc.VideoCodec(ctx, localPath); ok {
				log.WithField("codec", codec).Debug("detected source video codec")
			}

			if thumb, thumbName, ok := s.enc.Thumbnail(ctx, localPath); ok {
				thumbKey := fmt.Sprintf("thumbnails/%s/%s", video.ID, thumbName)
				if err := s.blobs.UploadBytes(ctx, thumbKey, thumb); err != nil {
					log.WithError(err).Error("failed to store thumbnail")
				} else {
					video.ThumbnailKey = thumbKey
				}
			} else {
				metrics.ProbeFailuresTotal.WithLabelValues("thumbnail").Inc()
			}

			return nil
		})
		if err != nil {
			log.WithError(err).Error("failed to acquire local copy for probing")
		}
	}

	size, err := s.blobs.Size(ctx, video.ObjectKey)
	if err != nil {
		log.WithError(err).Error("failed to stat stored file")
		video.FileSize = nil
	} else {
		video.FileSize = &size
	}

	if err := s.repo.UpdateVideo(ctx, video); err != nil {
		return fmt.Errorf("failed to save video metadata: %w", err)
	}

	s.invalidate(ctx, videoID)
	return nil
}

// handleDefaultTranscode requests the passthrough-compression transcode
// created for every new upload.
func (s *Service) handleDefaultTranscode(ctx context.Context, videoID string) error {
	_, err := s.RequestTranscode(ctx, videoID, models.FormatDefault, models.QualityDefault)
	return err
}

// RequestTranscode obtains the single record for (video, format) and starts
// an encode if none is in flight. The processing flag is persisted through a
// conditional update before the run task is published; a request that finds
// the flag already set is dropped. A failed record passes through the same
// path, clearing its error with the lock.
func (s *Service) RequestTranscode(ctx context.Context, videoID string, format models.MediaFormat, quality models.Quality) (*models.Transcode, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported media format %q", format)
	}
	if !quality.Valid() {
		return nil, fmt.Errorf("unknown quality tier %q", quality)
	}

	transcode, err := s.repo.GetOrCreateTranscode(ctx, videoID, format, quality)
	if err != nil {
		return nil, err
	}

	locked, err := s.repo.TryLockTranscode(ctx, transcode.ID, quality)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Encode already in flight for this pair. Dropped, not queued.
		metrics.TranscodeRequestsDroppedTotal.Inc()
		s.log.WithTranscodeID(transcode.ID).Debug("transcode already processing, dropping request")
		return transcode, nil
	}

	transcode.Processing = true
	transcode.Quality = quality
	transcode.ErrorMessage = ""

	if err := s.queue.PublishTask(ctx, models.Task{
		Name:        models.TaskTranscodeRun,
		TranscodeID: transcode.ID,
	}); err != nil {
		// The lock is held but no worker will ever pick the record up;
		// settle it as failed so it can be re-requested.
		if finishErr := s.repo.FinishTranscodeFailure(ctx, transcode.ID, fmt.Sprintf("failed to enqueue transcode: %v", err)); finishErr != nil {
			s.log.WithTranscodeID(transcode.ID).WithError(finishErr).Error("failed to settle unqueued transcode")
		}
		return nil, fmt.Errorf("failed to enqueue transcode: %w", err)
	}

	metrics.TranscodesStartedTotal.WithLabelValues(string(format)).Inc()
	return transcode, nil
}

// handleTranscodeRun executes the encode for a locked record and always
// leaves it in a terminal state: either the output reference or the error
// message is set, never both.
func (s *Service) handleTranscodeRun(ctx context.Context, transcodeID string) error {
	transcode, err := s.repo.GetTranscode(ctx, transcodeID)
	if err != nil {
		return fmt.Errorf("failed to load transcode: %w", err)
	}

	log := s.log.WithTranscodeID(transcodeID).WithVideoID(transcode.VideoID)

	if !transcode.Processing {
		// The lock must be taken by the dispatcher before the task is
		// published; a clear flag means this task is stale.
		log.Warn("transcode task arrived without the processing lock, skipping")
		return nil
	}

	video, err := s.repo.GetVideo(ctx, transcode.VideoID)
	if err != nil {
		return s.failTranscode(ctx, transcode, fmt.Errorf("failed to load video: %w", err))
	}

	start := time.Now()

	var outputKey string
	runErr := s.blobs.WithLocalCopy(ctx, video.ObjectKey, func(localPath string) error {
		data, outputName, err := s.enc.Transcode(ctx, localPath, transcode.Format, transcode.Quality)
		if err != nil {
			return err
		}

		outputKey = fmt.Sprintf("transcodes/%s/%s", video.ID, outputName)
		if err := s.blobs.UploadBytes(ctx, outputKey, data); err != nil {
			return fmt.Errorf("failed to store transcode output: %w", err)
		}
		return nil
	})

	if runErr != nil {
		return s.failTranscode(ctx, transcode, runErr)
	}

	if err := s.repo.FinishTranscodeSuccess(ctx, transcode.ID, outputKey); err != nil {
		return err
	}

	metrics.TranscodesCompletedTotal.WithLabelValues(string(transcode.Format), "succeeded").Inc()
	metrics.TranscodeDuration.WithLabelValues(string(transcode.Format)).Observe(time.Since(start).Seconds())
	log.Infof("transcode finished as %s", outputKey)
	return nil
}

// failTranscode records the captured failure on the record, clearing the
// lock. The failure stays local to the record; the task itself succeeds.
func (s *Service) failTranscode(ctx context.Context, transcode *models.Transcode, cause error) error {
	if err := s.repo.FinishTranscodeFailure(ctx, transcode.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to record transcode failure: %w (cause: %v)", err, cause)
	}

	metrics.TranscodesCompletedTotal.WithLabelValues(string(transcode.Format), "failed").Inc()
	s.log.WithTranscodeID(transcode.ID).WithError(cause).Error("transcode failed")
	return nil
}

// SourceExists reports whether the video's stored file is present. A missing
// source is surfaced to the editing interface as an actionable diagnostic,
// not auto-recovered.
func (s *Service) SourceExists(ctx context.Context, videoID string) (bool, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return false, err
	}
	return s.blobs.Exists(ctx, video.ObjectKey)
}

// DeleteVideo removes a video, its transcode records, and every stored
// object they reference: source file, thumbnail, transcode outputs.
func (s *Service) DeleteVideo(ctx context.Context, videoID string) error {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}

	transcodes, err := s.repo.GetTranscodesByVideoID(ctx, videoID)
	if err != nil {
		return err
	}

	// Remove the rows first so no new job can reference the objects.
	if err := s.repo.DeleteVideo(ctx, videoID); err != nil {
		return err
	}

	keys := []string{video.ObjectKey}
	if video.ThumbnailKey != "" {
		keys = append(keys, video.ThumbnailKey)
	}
	for _, t := range transcodes {
		if t.OutputKey != "" {
			keys = append(keys, t.OutputKey)
		}
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.WithVideoID(videoID).WithError(err).Errorf("failed to delete stored object %s", key)
		}
	}

	s.invalidate(ctx, videoID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, videoID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateVideo(ctx, videoID); err != nil {
		s.log.WithVideoID(videoID).WithError(err).Warn("failed to invalidate cached video")
	}
}
