package applog_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CandyFlex/pinch/internal/applog"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pinch.log")

	logger, closer, err := applog.Init(applog.Options{Path: path, Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello", "percent", 42)
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %q", string(data))
	}
}

func TestInitTruncatesPerRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinch.log")
	os.WriteFile(path, []byte("stale line from a previous run\n"), 0600)

	logger, closer, err := applog.Init(applog.Options{Path: path, Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("fresh start")
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "stale line") {
		t.Error("log file should be truncated on init")
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinch.log")
	logger, closer, err := applog.Init(applog.Options{Path: path, Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn entry missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := applog.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
