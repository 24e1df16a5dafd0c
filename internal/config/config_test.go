package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

ffmpeg:
  ffmpegPath: "/usr/local/bin/ffmpeg"
  require: true
  defaultArgs: ["-crf", "20"]
`

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Database.Host != "testdb" {
		t.Errorf("Expected database host testdb, got %s", cfg.Database.Host)
	}

	if cfg.FFmpeg.FFmpegPath != "/usr/local/bin/ffmpeg" {
		t.Errorf("Expected ffmpeg path override, got %s", cfg.FFmpeg.FFmpegPath)
	}

	if !cfg.FFmpeg.Require {
		t.Error("Expected ffmpeg.require to be true")
	}

	if len(cfg.FFmpeg.DefaultArgs) != 2 || cfg.FFmpeg.DefaultArgs[0] != "-crf" {
		t.Errorf("Expected defaultArgs [-crf 20], got %v", cfg.FFmpeg.DefaultArgs)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte("server:\n  port: 8081\n")); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.FFmpeg.FFprobePath != "ffprobe" {
		t.Errorf("Expected default ffprobe path, got %s", cfg.FFmpeg.FFprobePath)
	}

	if cfg.Storage.BucketName != "videos" {
		t.Errorf("Expected default bucket, got %s", cfg.Storage.BucketName)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}
