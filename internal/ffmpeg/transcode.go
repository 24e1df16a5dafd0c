package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/videovault/videovault/pkg/models"
)

// Transcode runs one encode invocation producing an alternate-codec copy of
// the source. On success it returns the output bytes and a filename derived
// from the source base name plus the target format's extension. On failure
// the returned error carries the captured process output so it can be stored
// verbatim on the transcode record. The working directory is removed on
// every exit path.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath string, format models.MediaFormat, quality models.Quality) ([]byte, string, error) {
	if !f.Installed() {
		return nil, "", fmt.Errorf("ffmpeg is not installed")
	}

	base := filepath.Base(inputPath)
	outputName := fmt.Sprintf("%s.%s", strings.TrimSuffix(base, filepath.Ext(base)), format.Ext())

	outputDir, err := os.MkdirTemp(f.tempDir, "videovault-transcode-")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create transcode temp dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	outputFile := filepath.Join(outputDir, outputName)

	args, err := f.transcodeArgs(inputPath, outputFile, format, quality)
	if err != nil {
		return nil, "", err
	}

	stdout, stderr, err := f.run(ctx, f.ffmpegPath, args, nil)
	if err != nil {
		return nil, "", fmt.Errorf("ffmpeg failed: %w: %s", err, combinedOutput(stdout, stderr))
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read transcode output: %w", err)
	}

	return data, outputName, nil
}

// transcodeArgs builds the per-format encoder argument vector. The quality
// parameter comes from the (format, tier) table; the default format runs
// with the configured passthrough arguments verbatim.
func (f *FFmpeg) transcodeArgs(inputPath, outputFile string, format models.MediaFormat, quality models.Quality) ([]string, error) {
	args := []string{"-hide_banner", "-i", inputPath}

	if format == models.FormatDefault {
		args = append(args, f.defaultArgs...)
		return append(args, outputFile), nil
	}

	param, err := models.QualityParam(format, quality)
	if err != nil {
		return nil, err
	}

	switch format {
	case models.FormatWebM:
		args = append(args,
			"-codec:v", "libvpx",
			"-crf", param,
			"-codec:a", "libvorbis",
		)
	case models.FormatMP4:
		args = append(args,
			"-codec:v", "libx264",
			"-preset", "slow",
			"-crf", param,
			"-codec:a", "copy",
		)
	case models.FormatOgg:
		args = append(args,
			"-codec:v", "libtheora",
			"-qscale:v", param,
			"-codec:a", "libvorbis",
			"-qscale:a", "5",
		)
	default:
		return nil, fmt.Errorf("unsupported media format %q", format)
	}

	return append(args, outputFile), nil
}

func combinedOutput(stdout, stderr []byte) string {
	out := strings.TrimSpace(string(stdout))
	errOut := strings.TrimSpace(string(stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}
