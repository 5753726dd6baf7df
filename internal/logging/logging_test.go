package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	t.Run("json filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, Config{Level: "warn"})
		if err != nil {
			t.Fatal(err)
		}
		logger := slog.New(h)
		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("Expected a single JSON record, got %q", buf.String())
		}
		if record["msg"] != "shown" || record["k"] != "v" {
			t.Errorf("Unexpected record %v", record)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, Config{Format: "TEXT"})
		if err != nil {
			t.Fatal(err)
		}
		slog.New(h).Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("Expected text output, got %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := NewHandler(&bytes.Buffer{}, Config{Format: "xml"}); err == nil {
			t.Error("Expected error for unknown format")
		}
	})
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "oneclick.log")
	logger, err := New(Config{Outputs: []string{path}})
	if err != nil {
		t.Fatal(err)
	}

	Named(logger.Logger, "manager").Info("connected")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	if record["component"] != "manager" || record["msg"] != "connected" {
		t.Errorf("Unexpected record %v", record)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}
