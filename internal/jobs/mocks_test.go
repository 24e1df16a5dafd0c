package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/videovault/videovault/pkg/models"
)

var errNotFound = errors.New("record not found")

// repoMock is an in-memory Repository honoring the same locking semantics
// as the database: TryLockTranscode is a compare-and-swap on the
// processing flag, and (video, format) pairs map to a single record.
type repoMock struct {
	mu         sync.Mutex
	videos     map[string]*models.Video
	transcodes map[string]*models.Transcode
	byPair     map[string]string

	getVideoErr    error
	updateVideoErr error
}

func newRepoMock() *repoMock {
	return &repoMock{
		videos:     make(map[string]*models.Video),
		transcodes: make(map[string]*models.Transcode),
		byPair:     make(map[string]string),
	}
}

func pairKey(videoID string, format models.MediaFormat) string {
	return videoID + "|" + string(format)
}

func (r *repoMock) addVideo(v *models.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.videos[v.ID] = &cp
}

func (r *repoMock) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getVideoErr != nil {
		return nil, r.getVideoErr
	}
	v, ok := r.videos[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *repoMock) UpdateVideo(ctx context.Context, video *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateVideoErr != nil {
		return r.updateVideoErr
	}
	if _, ok := r.videos[video.ID]; !ok {
		return errNotFound
	}
	cp := *video
	r.videos[video.ID] = &cp
	return nil
}

func (r *repoMock) DeleteVideo(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return errNotFound
	}
	delete(r.videos, id)
	for tid, t := range r.transcodes {
		if t.VideoID == id {
			delete(r.transcodes, tid)
			delete(r.byPair, pairKey(id, t.Format))
		}
	}
	return nil
}

func (r *repoMock) GetOrCreateTranscode(ctx context.Context, videoID string, format models.MediaFormat, quality models.Quality) (*models.Transcode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[pairKey(videoID, format)]; ok {
		cp := *r.transcodes[id]
		return &cp, nil
	}
	t := &models.Transcode{
		ID:      uuid.New().String(),
		VideoID: videoID,
		Format:  format,
		Quality: quality,
	}
	r.transcodes[t.ID] = t
	r.byPair[pairKey(videoID, format)] = t.ID
	cp := *t
	return &cp, nil
}

func (r *repoMock) GetTranscode(ctx context.Context, id string) (*models.Transcode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcodes[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *repoMock) GetTranscodesByVideoID(ctx context.Context, videoID string) ([]*models.Transcode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transcode
	for _, t := range r.transcodes {
		if t.VideoID == videoID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repoMock) TryLockTranscode(ctx context.Context, id string, quality models.Quality) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcodes[id]
	if !ok {
		return false, errNotFound
	}
	if t.Processing {
		return false, nil
	}
	t.Processing = true
	t.ErrorMessage = ""
	t.Quality = quality
	return true, nil
}

func (r *repoMock) FinishTranscodeSuccess(ctx context.Context, id, outputKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcodes[id]
	if !ok {
		return errNotFound
	}
	t.Processing = false
	t.OutputKey = outputKey
	t.ErrorMessage = ""
	return nil
}

func (r *repoMock) FinishTranscodeFailure(ctx context.Context, id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcodes[id]
	if !ok {
		return errNotFound
	}
	t.Processing = false
	t.OutputKey = ""
	t.ErrorMessage = errorMessage
	return nil
}

// blobMock is an in-memory BlobStore. WithLocalCopy materializes the object
// in a temp file the way the real store downloads remote objects.
type blobMock struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newBlobMock() *blobMock {
	return &blobMock{objects: make(map[string][]byte)}
}

func (b *blobMock) put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}

func (b *blobMock) WithLocalCopy(ctx context.Context, objectKey string, fn func(string) error) error {
	b.mu.Lock()
	data, ok := b.objects[objectKey]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("object %s does not exist", objectKey)
	}

	dir, err := os.MkdirTemp("", "blobmock-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	localPath := filepath.Join(dir, filepath.Base(objectKey))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return err
	}
	return fn(localPath)
}

func (b *blobMock) UploadBytes(ctx context.Context, objectKey string, data []byte) error {
	b.put(objectKey, data)
	return nil
}

func (b *blobMock) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectKey)
	b.deleted = append(b.deleted, objectKey)
	return nil
}

func (b *blobMock) Size(ctx context.Context, objectKey string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[objectKey]
	if !ok {
		return 0, fmt.Errorf("object %s does not exist", objectKey)
	}
	return int64(len(data)), nil
}

func (b *blobMock) Exists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[objectKey]
	return ok, nil
}

// queueMock records published tasks; tests drain it by feeding the tasks
// back into the service handler.
type queueMock struct {
	mu         sync.Mutex
	tasks      []models.Task
	publishErr error
}

func (q *queueMock) PublishTask(ctx context.Context, task models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueMock) drain() []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

// encMock is a stubbed encoder counting invocations.
type encMock struct {
	mu sync.Mutex

	installed bool

	duration   float64
	durationOK bool

	codec   string
	codecOK bool

	thumb     []byte
	thumbName string
	thumbOK   bool

	transcodeData  []byte
	transcodeErr   error
	transcodeCalls int
}

func (e *encMock) Installed() bool { return e.installed }

func (e *encMock) Duration(ctx context.Context, inputPath string) (float64, bool) {
	return e.duration, e.durationOK
}

func (e *encMock) VideoCodec(ctx context.Context, inputPath string) (string, bool) {
	return e.codec, e.codecOK
}

func (e *encMock) Thumbnail(ctx context.Context, inputPath string) ([]byte, string, bool) {
	return e.thumb, e.thumbName, e.thumbOK
}

func (e *encMock) Transcode(ctx context.Context, inputPath string, format models.MediaFormat, quality models.Quality) ([]byte, string, error) {
	e.mu.Lock()
	e.transcodeCalls++
	e.mu.Unlock()
	if e.transcodeErr != nil {
		return nil, "", e.transcodeErr
	}
	base := filepath.Base(inputPath)
	name := base[:len(base)-len(filepath.Ext(base))] + "." + format.Ext()
	return e.transcodeData, name, nil
}

func (e *encMock) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcodeCalls
}

// cacheMock records invalidations.
type cacheMock struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *cacheMock) InvalidateVideo(ctx context.Context, videoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, videoID)
	return nil
}
