package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"vkmusic/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(os.TempDir(), "vkmusic-test.log"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}

			if tt.cfg.File != "" {
				os.Remove(tt.cfg.File)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestTestLoggerCapturesMessages(t *testing.T) {
	log := NewTestLogger()

	log.Info("starting up")
	log.WithField("user_id", int64(42)).Warn("token expiring")
	log.ErrorWithFields("download failed", map[string]interface{}{"attempts": 3})

	if len(log.Messages()) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(log.Messages()))
	}
	if !log.HasMessage("token expiring") {
		t.Error("expected the warn message to be captured")
	}

	warns := log.MessagesAtLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["user_id"] != int64(42) {
		t.Errorf("expected child logger fields to be captured, got %+v", warns)
	}

	errs := log.MessagesAtLevel("ERROR")
	if len(errs) != 1 || errs[0].Fields["attempts"] != 3 {
		t.Errorf("expected call-site fields, got %+v", errs)
	}
}
