package models

import (
	"path"
	"strings"
	"time"
)

// Video represents an uploaded source video.
type Video struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	ObjectKey    string    `json:"object_key" db:"object_key"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty" db:"thumbnail_key"`
	Duration     *float64  `json:"duration,omitempty" db:"duration"`
	FileSize     *int64    `json:"file_size,omitempty" db:"file_size"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Filename returns the base name of the stored file, optionally without
// its extension.
func (v *Video) Filename(includeExt bool) string {
	name := path.Base(v.ObjectKey)
	if includeExt {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

// ResetDerived clears the metadata that is derived from the file contents.
// Called when the file reference is replaced so a metadata task can
// repopulate it.
func (v *Video) ResetDerived() {
	v.Duration = nil
	v.FileSize = nil
	v.ThumbnailKey = ""
}
