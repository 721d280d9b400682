package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Conf
		wantErr bool
	}{
		{"defaults", *SetDefaults(), false},
		{"empty", Conf{}, false},
		{"file without path", Conf{Output: "file"}, true},
		{"unknown output", Conf{Output: "kafka"}, true},
		{"bad level", Conf{Level: "loud"}, true},
		{"upper case level", Conf{Level: "INFO"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_FillsRotation(t *testing.T) {
	c := Conf{Output: "file", Path: "logs"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.RotateSize != 100 || c.RotateNum != 10 || c.KeepDays != 7 {
		t.Errorf("expected rotation defaults, got %+v", c)
	}
	if c.Filename != "sngram.log" {
		t.Errorf("expected default filename, got %q", c.Filename)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zapcore.InfoLevel)
	log.Debug("hidden")
	log.Info("extracted", zap.Int("patterns", 3))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "patterns") {
		t.Errorf("expected info line with field, got %q", out)
	}
}

func TestNewLog_File(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(&Conf{Output: "file", Path: dir, Level: "info"})
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	log.Info("to file")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "sngram.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected log line in file, got %q", data)
	}
}
