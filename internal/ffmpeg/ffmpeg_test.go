package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/videovault/videovault/internal/logging"
	"github.com/videovault/videovault/pkg/models"
)

func testFFmpeg(t *testing.T, run runFunc) *FFmpeg {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return &FFmpeg{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		defaultArgs: []string{"-crf", "23", "-preset", "veryfast"},
		log:         log,
		run:         run,
		lookPath:    func(string) (string, error) { return "/usr/bin/ffmpeg", nil },
	}
}

func TestDuration(t *testing.T) {
	probeOutput := `[FORMAT]
filename=clip.mp4
nb_streams=2
duration=12.5
size=1048576
[/FORMAT]
`

	var gotArgs []string
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(probeOutput), nil, nil
	})

	duration, ok := f.Duration(context.Background(), "clip.mp4")
	if !ok {
		t.Fatal("expected duration to be present")
	}
	if duration != 12.5 {
		t.Errorf("duration = %v, want 12.5", duration)
	}

	want := []string{"clip.mp4", "-show_format", "-v", "quiet"}
	if strings.Join(gotArgs, " ") != strings.Join(want, " ") {
		t.Errorf("ffprobe args = %v, want %v", gotArgs, want)
	}
}

func TestDurationMalformedOutput(t *testing.T) {
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		return []byte("duration=not-a-number\n"), nil, nil
	})

	if _, ok := f.Duration(context.Background(), "clip.mp4"); ok {
		t.Error("expected absent result for malformed output")
	}
}

func TestDurationProcessFailure(t *testing.T) {
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		return nil, []byte("clip.mp4: No such file or directory"), errors.New("exit status 1")
	})

	if _, ok := f.Duration(context.Background(), "clip.mp4"); ok {
		t.Error("expected absent result on process failure")
	}
}

func TestDurationToolMissing(t *testing.T) {
	calls := 0
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		calls++
		return nil, nil, nil
	})
	f.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if _, ok := f.Duration(context.Background(), "clip.mp4"); ok {
		t.Error("expected absent result when tool is missing")
	}
	if calls != 0 {
		t.Errorf("prober should not be invoked when missing, got %d calls", calls)
	}
}

func TestVideoCodec(t *testing.T) {
	probeJSON := `{
		"streams": [
			{"codec_name": "aac", "codec_type": "audio"},
			{"codec_name": "h264", "codec_type": "video"},
			{"codec_name": "vp8", "codec_type": "video"}
		]
	}`

	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		return []byte(probeJSON), nil, nil
	})

	codec, ok := f.VideoCodec(context.Background(), "clip.mp4")
	if !ok {
		t.Fatal("expected codec to be present")
	}
	if codec != "h264" {
		t.Errorf("codec = %q, want h264 (first video stream)", codec)
	}
}

func TestVideoCodecNoVideoStream(t *testing.T) {
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		return []byte(`{"streams": [{"codec_name": "mp3", "codec_type": "audio"}]}`), nil, nil
	})

	// No video stream is a valid "no codec" result, not an error.
	if _, ok := f.VideoCodec(context.Background(), "audio.mp3"); ok {
		t.Error("expected absent codec for audio-only file")
	}
}

func TestVideoCodecMalformedJSON(t *testing.T) {
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		return []byte("{not json"), nil, nil
	})

	if _, ok := f.VideoCodec(context.Background(), "clip.mp4"); ok {
		t.Error("expected absent codec for malformed output")
	}
}

func TestVideoCodecFromBytes(t *testing.T) {
	var gotStdin []byte
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		gotStdin = stdin
		if args[len(args)-1] != "-" {
			t.Errorf("expected stdin marker as final arg, got %v", args)
		}
		return []byte(`{"streams": [{"codec_name": "vp9", "codec_type": "video"}]}`), nil, nil
	})

	codec, ok := f.VideoCodecFromBytes(context.Background(), []byte("fake video bytes"))
	if !ok || codec != "vp9" {
		t.Errorf("codec = %q, ok = %v, want vp9", codec, ok)
	}
	if string(gotStdin) != "fake video bytes" {
		t.Error("buffer was not passed to the prober's stdin")
	}
}

func TestThumbnail(t *testing.T) {
	var workDir string
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		outputFile := args[len(args)-1]
		workDir = filepath.Dir(outputFile)
		return nil, nil, os.WriteFile(outputFile, []byte("jpeg bytes"), 0644)
	})

	data, thumbName, ok := f.Thumbnail(context.Background(), "/videos/holiday.mov")
	if !ok {
		t.Fatal("expected thumbnail to be present")
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("thumbnail data = %q", data)
	}
	if thumbName != "holiday_thumb.jpg" {
		t.Errorf("thumbnail name = %q, want holiday_thumb.jpg", thumbName)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s was not removed", workDir)
	}
}

func TestThumbnailFailureCleansUp(t *testing.T) {
	var workDir string
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		workDir = filepath.Dir(args[len(args)-1])
		return nil, []byte("decode error"), errors.New("exit status 1")
	})

	if _, _, ok := f.Thumbnail(context.Background(), "/videos/holiday.mov"); ok {
		t.Error("expected absent thumbnail on encoder failure")
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s was not removed after failure", workDir)
	}
}

func TestTranscodeArgs(t *testing.T) {
	f := testFFmpeg(t, nil)

	tests := []struct {
		format  models.MediaFormat
		quality models.Quality
		want    []string
	}{
		{models.FormatMP4, models.QualityHighest, []string{"-codec:v", "libx264", "-preset", "slow", "-crf", "18", "-codec:a", "copy"}},
		{models.FormatMP4, models.QualityLowest, []string{"-codec:v", "libx264", "-preset", "slow", "-crf", "28", "-codec:a", "copy"}},
		{models.FormatWebM, models.QualityDefault, []string{"-codec:v", "libvpx", "-crf", "22", "-codec:a", "libvorbis"}},
		{models.FormatWebM, models.QualityHighest, []string{"-codec:v", "libvpx", "-crf", "4", "-codec:a", "libvorbis"}},
		{models.FormatOgg, models.QualityLowest, []string{"-codec:v", "libtheora", "-qscale:v", "5", "-codec:a", "libvorbis", "-qscale:a", "5"}},
		{models.FormatOgg, models.QualityHighest, []string{"-codec:v", "libtheora", "-qscale:v", "9", "-codec:a", "libvorbis", "-qscale:a", "5"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format)+"/"+string(tt.quality), func(t *testing.T) {
			args, err := f.transcodeArgs("in.mov", "out.x", tt.format, tt.quality)
			if err != nil {
				t.Fatalf("transcodeArgs error: %v", err)
			}
			got := strings.Join(args, " ")
			want := "-hide_banner -i in.mov " + strings.Join(tt.want, " ") + " out.x"
			if got != want {
				t.Errorf("args = %q, want %q", got, want)
			}
		})
	}
}

func TestTranscodeArgsDefaultPassthrough(t *testing.T) {
	f := testFFmpeg(t, nil)

	args, err := f.transcodeArgs("in.mov", "out.mp4", models.FormatDefault, models.QualityDefault)
	if err != nil {
		t.Fatalf("transcodeArgs error: %v", err)
	}

	want := "-hide_banner -i in.mov -crf 23 -preset veryfast out.mp4"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestTranscode(t *testing.T) {
	var workDir string
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		outputFile := args[len(args)-1]
		workDir = filepath.Dir(outputFile)
		return nil, nil, os.WriteFile(outputFile, []byte("encoded"), 0644)
	})

	data, outputName, err := f.Transcode(context.Background(), "/videos/holiday.mov", models.FormatWebM, models.QualityDefault)
	if err != nil {
		t.Fatalf("Transcode error: %v", err)
	}
	if string(data) != "encoded" {
		t.Errorf("output data = %q", data)
	}
	if outputName != "holiday.webm" {
		t.Errorf("output name = %q, want holiday.webm", outputName)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s was not removed", workDir)
	}
}

func TestTranscodeFailureCapturesOutput(t *testing.T) {
	var workDir string
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		workDir = filepath.Dir(args[len(args)-1])
		return []byte("frame=0"), []byte("Unknown encoder 'libvpx'"), errors.New("exit status 1")
	})

	_, _, err := f.Transcode(context.Background(), "clip.mov", models.FormatWebM, models.QualityDefault)
	if err == nil {
		t.Fatal("expected error on encoder failure")
	}
	if !strings.Contains(err.Error(), "Unknown encoder 'libvpx'") {
		t.Errorf("error should carry captured process output, got %q", err)
	}
	if _, statErr := os.Stat(workDir); !os.IsNotExist(statErr) {
		t.Errorf("temp dir %s was not removed after failure", workDir)
	}
}

func TestTranscodeToolMissing(t *testing.T) {
	f := testFFmpeg(t, func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
		t.Fatal("encoder should not be invoked when missing")
		return nil, nil, nil
	})
	f.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if _, _, err := f.Transcode(context.Background(), "clip.mov", models.FormatMP4, models.QualityDefault); err == nil {
		t.Error("expected error when tool is missing")
	}
}
