package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/videovault/videovault/internal/config"
	"github.com/videovault/videovault/internal/logging"
)

// runFunc executes an external command and returns its stdout, stderr and
// exit error. Indirected so tests can stub the encoder and count calls.
type runFunc func(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, err error)

// FFmpeg invokes the external encoder and prober.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	defaultArgs []string
	log         *logging.Logger

	run      runFunc
	lookPath func(string) (string, error)
}

// New creates an FFmpeg instance from configuration.
func New(cfg config.FFmpegConfig, log *logging.Logger) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		tempDir:     cfg.TempDir,
		defaultArgs: cfg.DefaultArgs,
		log:         log,
		run:         runCommand,
		lookPath:    exec.LookPath,
	}
}

// Installed reports whether the encoder binary can be located.
func (f *FFmpeg) Installed() bool {
	_, err := f.lookPath(f.ffmpegPath)
	return err == nil
}

// Duration probes the file and returns its duration in seconds. The second
// return value is false on any expected failure: tool missing, process exit
// failure, or malformed output. Those degrade to an absent result with a
// logged diagnostic, never an error.
func (f *FFmpeg) Duration(ctx context.Context, inputPath string) (float64, bool) {
	if !f.Installed() {
		f.log.Warn("ffmpeg is not installed, skipping duration probe")
		return 0, false
	}

	stdout, stderr, err := f.run(ctx, f.ffprobePath, []string{
		inputPath, "-show_format", "-v", "quiet",
	}, nil)
	if err != nil {
		f.log.WithError(err).WithField("stderr", string(stderr)).Error("ffprobe duration failed")
		return 0, false
	}

	return parseDuration(stdout, f.log)
}

// parseDuration extracts the first duration token from line-oriented
// key=value probe output.
func parseDuration(out []byte, log *logging.Logger) (float64, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "duration=")
		if !ok {
			continue
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			log.WithError(err).Error("malformed duration in probe output")
			return 0, false
		}
		return seconds, true
	}
	log.Debug("probe output contained no duration")
	return 0, false
}

// probeStreams is the shape of ffprobe's JSON stream listing.
type probeStreams struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// VideoCodec probes the file and returns the codec name of its first
// video stream. Absence of any video stream is a valid "no codec" result,
// not an error.
func (f *FFmpeg) VideoCodec(ctx context.Context, inputPath string) (string, bool) {
	if !f.Installed() {
		f.log.Warn("ffmpeg is not installed, skipping codec probe")
		return "", false
	}

	stdout, stderr, err := f.run(ctx, f.ffprobePath, []string{
		inputPath, "-show_entries", "stream=codec_name,codec_type", "-of", "json", "-v", "quiet",
	}, nil)
	if err != nil {
		f.log.WithError(err).WithField("stderr", string(stderr)).Error("ffprobe codec failed")
		return "", false
	}

	return parseVideoCodec(stdout, f.log)
}

// VideoCodecFromBytes probes an in-memory buffer instead of a file path.
func (f *FFmpeg) VideoCodecFromBytes(ctx context.Context, data []byte) (string, bool) {
	if !f.Installed() {
		f.log.Warn("ffmpeg is not installed, skipping codec probe")
		return "", false
	}

	stdout, stderr, err := f.run(ctx, f.ffprobePath, []string{
		"-show_entries", "stream=codec_name,codec_type", "-of", "json", "-v", "quiet", "-",
	}, data)
	if err != nil {
		f.log.WithError(err).WithField("stderr", string(stderr)).Error("ffprobe codec failed")
		return "", false
	}

	return parseVideoCodec(stdout, f.log)
}

func parseVideoCodec(out []byte, log *logging.Logger) (string, bool) {
	var probe probeStreams
	if err := json.Unmarshal(out, &probe); err != nil {
		log.WithError(err).Error("malformed ffprobe json output")
		return "", false
	}

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			return stream.CodecName, true
		}
	}
	return "", false
}

// runCommand executes a command capturing stdout and stderr.
func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
