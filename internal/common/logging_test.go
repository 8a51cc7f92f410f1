package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("info", &buf).WithComponent("market")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"market"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
}

func TestNewLoggerFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tracker.log")
	logger, closer, err := NewLoggerFromConfig(LoggingConfig{
		Level:    "debug",
		Outputs:  []string{"file"},
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("NewLoggerFromConfig failed: %v", err)
	}
	logger.Debug().Str("ticker", "AAPL").Msg("written")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"ticker":"AAPL"`) {
		t.Errorf("expected structured field in log file, got %q", data)
	}
}

func TestNewLoggerFromConfig_NoOutputs(t *testing.T) {
	logger, closer, err := NewLoggerFromConfig(LoggingConfig{Outputs: []string{"file"}})
	if err != nil {
		t.Fatalf("NewLoggerFromConfig failed: %v", err)
	}
	defer closer.Close()
	if logger == nil {
		t.Fatal("expected a silent logger when no output is usable")
	}
}
