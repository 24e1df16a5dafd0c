package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Thumbnail dimensions and capture offset. The negative offset skips blank
// leading frames.
const (
	thumbnailSize   = "320x240"
	thumbnailOffset = "-4"
)

// Thumbnail captures a single still frame from the video as a JPEG blob.
// Returns the frame bytes, a filename derived from the source name, and
// false on tool-missing or encoder failure so callers can proceed without
// a thumbnail. The working directory is removed on every exit path.
func (f *FFmpeg) Thumbnail(ctx context.Context, inputPath string) ([]byte, string, bool) {
	if !f.Installed() {
		f.log.Warn("ffmpeg is not installed, skipping thumbnail")
		return nil, "", false
	}

	base := filepath.Base(inputPath)
	thumbName := strings.TrimSuffix(base, filepath.Ext(base)) + "_thumb.jpg"

	outputDir, err := os.MkdirTemp(f.tempDir, "videovault-thumb-")
	if err != nil {
		f.log.WithError(err).Error("failed to create thumbnail temp dir")
		return nil, "", false
	}
	defer os.RemoveAll(outputDir)

	outputFile := filepath.Join(outputDir, thumbName)

	_, stderr, err := f.run(ctx, f.ffmpegPath, []string{
		"-v", "quiet",
		"-itsoffset", thumbnailOffset,
		"-i", inputPath,
		"-vcodec", "mjpeg",
		"-vframes", "1",
		"-an", "-f", "rawvideo",
		"-s", thumbnailSize,
		outputFile,
	}, nil)
	if err != nil {
		f.log.WithError(err).WithField("stderr", string(stderr)).Error("thumbnail extraction failed")
		return nil, "", false
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		f.log.WithError(err).Error("failed to read thumbnail output")
		return nil, "", false
	}

	return data, thumbName, true
}
