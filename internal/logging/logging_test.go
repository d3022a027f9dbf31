package logging

import (
	"testing"

	"github.com/tylerlaw/portfolio/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		debug   bool
		wantErr bool
	}{
		{name: "defaults", cfg: config.LogConfig{}},
		{name: "json debug", cfg: config.LogConfig{Level: "debug", Format: "json"}, debug: true},
		{name: "console warn", cfg: config.LogConfig{Level: "warn", Format: "console"}},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LogConfig{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}
