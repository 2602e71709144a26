package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"pkgd/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    logrus.Level
	}{
		{"info", false, logrus.InfoLevel},
		{"", false, logrus.InfoLevel},
		{"warn", true, logrus.DebugLevel},
		{"trace", true, logrus.TraceLevel},
		{"error", false, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := NewWithOutput(config.LogConfig{Level: tt.level}, tt.verbose, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if l.GetLevel() != tt.want {
				t.Errorf("level = %s, want %s", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}, false); err == nil {
		t.Error("New() should reject an unknown level")
	}
}

func TestComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(config.LogConfig{Level: "info", Format: "json"}, false, &buf)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	Component(l, "scheduler").Info("admitted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "scheduler" || entry["msg"] != "admitted" {
		t.Errorf("entry = %v", entry)
	}
}
