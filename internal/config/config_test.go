package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Audit.Output != "memory" {
		t.Errorf("Audit.Output = %q, want memory", cfg.Audit.Output)
	}
	if cfg.Audit.ChannelSize != 1000 || cfg.Audit.BatchSize != 100 {
		t.Errorf("audit sizes = %d/%d, want 1000/100", cfg.Audit.ChannelSize, cfg.Audit.BatchSize)
	}
	if cfg.Audit.RetentionDays != 30 || cfg.Audit.CacheSize != 1000 {
		t.Errorf("audit retention/cache = %d/%d, want 30/1000", cfg.Audit.RetentionDays, cfg.Audit.CacheSize)
	}
}

func TestSetDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{HTTPAddr: "0.0.0.0:9000", LogLevel: "error"},
		Store:  StoreConfig{Backend: "sqlite", Path: "/tmp/pg.db"},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr overwritten: %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "error" {
		t.Errorf("LogLevel overwritten: %q", cfg.Server.LogLevel)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend overwritten: %q", cfg.Store.Backend)
	}
}

func TestSetDefaults_DevModeForcesDebug(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug in dev mode", cfg.Server.LogLevel)
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := Config{Server: ServerConfig{LogLevel: tt.level}}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestAuditDurations(t *testing.T) {
	t.Parallel()

	a := AuditConfig{FlushInterval: "250ms", SendTimeout: "50ms"}
	if got := a.FlushIntervalDuration(); got != 250*time.Millisecond {
		t.Errorf("FlushIntervalDuration() = %v, want 250ms", got)
	}
	if got := a.SendTimeoutDuration(); got != 50*time.Millisecond {
		t.Errorf("SendTimeoutDuration() = %v, want 50ms", got)
	}

	zero := AuditConfig{SendTimeout: "0"}
	if got := zero.SendTimeoutDuration(); got != 0 {
		t.Errorf("SendTimeoutDuration(\"0\") = %v, want 0", got)
	}

	malformed := AuditConfig{FlushInterval: "soon", SendTimeout: "later"}
	if got := malformed.FlushIntervalDuration(); got != time.Second {
		t.Errorf("FlushIntervalDuration(malformed) = %v, want 1s", got)
	}
	if got := malformed.SendTimeoutDuration(); got != 100*time.Millisecond {
		t.Errorf("SendTimeoutDuration(malformed) = %v, want 100ms", got)
	}
}
