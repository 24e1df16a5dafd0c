package models

import "time"

// Transcode tracks one (video, format) re-encode attempt. At most one record
// exists per pair; the Processing flag is the single-flight lock and must be
// persisted before the encoder is invoked.
type Transcode struct {
	ID           string      `json:"id" db:"id"`
	VideoID      string      `json:"video_id" db:"video_id"`
	Format       MediaFormat `json:"format" db:"format"`
	Quality      Quality     `json:"quality" db:"quality"`
	Processing   bool        `json:"processing" db:"processing"`
	OutputKey    string      `json:"output_key,omitempty" db:"output_key"`
	ErrorMessage string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Succeeded reports whether the record is in the terminal success state.
func (t *Transcode) Succeeded() bool {
	return !t.Processing && t.OutputKey != "" && t.ErrorMessage == ""
}

// Failed reports whether the record is in the terminal failure state.
func (t *Transcode) Failed() bool {
	return !t.Processing && t.ErrorMessage != ""
}

// Task names understood by the worker.
const (
	TaskVideoMetadata    = "video.metadata"
	TaskDefaultTranscode = "video.default_transcode"
	TaskTranscodeRun     = "transcode.run"
)

// Task is a fire-and-forget job description submitted to the queue.
// Exactly one of VideoID and TranscodeID is set, depending on the task.
type Task struct {
	Name        string `json:"name"`
	VideoID     string `json:"video_id,omitempty"`
	TranscodeID string `json:"transcode_id,omitempty"`
}
