package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "zfetchd.log")
	var console bytes.Buffer

	logger, err := newLogger(logPath, "main", "debug", zapcore.AddSync(&console))
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Debug("fetching messages")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["msg"] != "fetching messages" || entry["session"] != "main" {
		t.Errorf("entry = %v", entry)
	}
	if !strings.Contains(console.String(), "fetching messages") {
		t.Errorf("console output = %q", console.String())
	}
}

func TestLevelFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "zfetchd.log")
	var console bytes.Buffer

	logger, err := newLogger(logPath, "main", "warn", zapcore.AddSync(&console))
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	out := console.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Errorf("console output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"ERROR", zapcore.ErrorLevel, false},
		{"chatty", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
