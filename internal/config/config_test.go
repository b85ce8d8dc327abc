package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return *defaults()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid postgres with kafka",
			modify: func(c *Config) {
				c.DBBackend = "postgres"
				c.PostgresDSN = "postgres://circolo@localhost/circolo?sslmode=disable"
				c.EventsBackend = "kafka"
			},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			modify:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			modify:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.LogLevel = "chatty" },
			wantErr:     true,
			errorString: "invalid log level 'chatty'",
		},
		{
			name:        "invalid db backend",
			modify:      func(c *Config) { c.DBBackend = "sheets" },
			wantErr:     true,
			errorString: "invalid db backend 'sheets': must be one of [memory sqlite postgres]",
		},
		{
			name: "sqlite backend missing database path",
			modify: func(c *Config) {
				c.DBBackend = "sqlite"
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name:        "postgres backend missing dsn",
			modify:      func(c *Config) { c.DBBackend = "postgres" },
			wantErr:     true,
			errorString: "POSTGRES_DSN is required when using postgres backend",
		},
		{
			name:        "tessera floor must be positive",
			modify:      func(c *Config) { c.TesseraFloor = 0 },
			wantErr:     true,
			errorString: "invalid tessera floor 0: must be at least 1",
		},
		{
			name: "invalid AMQP URL scheme",
			modify: func(c *Config) {
				c.EventsBackend = "amqp"
				c.AMQPURL = "http://localhost:5672/"
			},
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name: "AMQP without queue",
			modify: func(c *Config) {
				c.EventsBackend = "amqp"
				c.AMQPQueue = ""
			},
			wantErr:     true,
			errorString: "AMQP queue name cannot be empty when using amqp events",
		},
		{
			name: "AMQP URL is not checked when events are off",
			modify: func(c *Config) {
				c.EventsBackend = "none"
				c.AMQPURL = "http://localhost"
			},
			wantErr: false,
		},
		{
			name: "kafka without brokers",
			modify: func(c *Config) {
				c.EventsBackend = "kafka"
				c.KafkaBrokers = nil
			},
			wantErr:     true,
			errorString: "KAFKA_BROKERS cannot be empty when using kafka events",
		},
		{
			name:        "unknown events backend",
			modify:      func(c *Config) { c.EventsBackend = "nats" },
			wantErr:     true,
			errorString: "invalid events backend 'nats'",
		},
		{
			name:        "invalid audit interval - too short",
			modify:      func(c *Config) { c.AuditInterval = 500 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid audit interval 500ms: must be at least 1 second",
		},
		{
			name:        "invalid audit interval - too long",
			modify:      func(c *Config) { c.AuditInterval = 25 * time.Hour },
			wantErr:     true,
			errorString: "invalid audit interval 25h0m0s: must be at most 24 hours",
		},
		{
			name: "sheets without credentials",
			modify: func(c *Config) {
				c.GoogleSpreadsheetID = "sheet-id"
			},
			wantErr:     true,
			errorString: "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided",
		},
		{
			name: "sheets with missing credentials file",
			modify: func(c *Config) {
				c.GoogleSpreadsheetID = "sheet-id"
				c.GoogleServiceAccountFile = "/non/existent/file.json"
			},
			wantErr:     true,
			errorString: "Google service account file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Config.Validate() error = %v, want ErrInvalid", err)
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.TesseraFloor = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid port") || !strings.Contains(err.Error(), "invalid tessera floor") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestConfig_ValidateSQLiteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := validConfig()
	cfg.DBBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(dir, "circolo.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory %s to exist: %v", dir, err)
	}
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		FileEnv, "PORT", "LOG_LEVEL", "DB_BACKEND", "SQLITE_DB_PATH", "POSTGRES_DSN",
		"TESSERA_FLOOR", "EVENTS_BACKEND", "KAFKA_BROKERS", "AUDIT_INTERVAL", "REFERENCE_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.DBBackend != "memory" {
			t.Errorf("Load() DBBackend = %v, want memory", cfg.DBBackend)
		}
		if cfg.TesseraFloor != 1000 {
			t.Errorf("Load() TesseraFloor = %v, want 1000", cfg.TesseraFloor)
		}
		if cfg.AuditInterval != time.Hour {
			t.Errorf("Load() AuditInterval = %v, want 1h", cfg.AuditInterval)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "9090")
		t.Setenv("DB_BACKEND", "sqlite")
		t.Setenv("TESSERA_FLOOR", "5000")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		t.Setenv("AUDIT_INTERVAL", "15m")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.DBBackend != "sqlite" {
			t.Errorf("Load() DBBackend = %v, want sqlite", cfg.DBBackend)
		}
		if cfg.TesseraFloor != 5000 {
			t.Errorf("Load() TesseraFloor = %v, want 5000", cfg.TesseraFloor)
		}
		if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
			t.Errorf("Load() KafkaBrokers = %v", cfg.KafkaBrokers)
		}
		if cfg.AuditInterval != 15*time.Minute {
			t.Errorf("Load() AuditInterval = %v, want 15m", cfg.AuditInterval)
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TESSERA_FLOOR", "lots")
		t.Setenv("AUDIT_INTERVAL", "invalid")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.TesseraFloor != 1000 {
			t.Errorf("Load() TesseraFloor = %v, want 1000 (default for invalid input)", cfg.TesseraFloor)
		}
		if cfg.AuditInterval != time.Hour {
			t.Errorf("Load() AuditInterval = %v, want 1h (default for invalid input)", cfg.AuditInterval)
		}
	})

	t.Run("toml file overlaid by environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "circolo.toml")
		content := `
[server]
port = "7070"
log_level = "debug"

[storage]
backend = "postgres"
postgres_dsn = "postgres://localhost/circolo"

[numbering]
floor = 2000

[audit]
interval = "30m"

[cache]
ttl = "2h"
size = 4
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(FileEnv, path)
		t.Setenv("PORT", "6060")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "6060" {
			t.Errorf("env should win over file, Port = %v", cfg.Port)
		}
		if cfg.SlogLevel() != slog.LevelDebug {
			t.Errorf("Load() level = %v, want debug", cfg.SlogLevel())
		}
		if cfg.DBBackend != "postgres" || cfg.PostgresDSN != "postgres://localhost/circolo" {
			t.Errorf("Load() storage = %v %v", cfg.DBBackend, cfg.PostgresDSN)
		}
		if cfg.TesseraFloor != 2000 {
			t.Errorf("Load() TesseraFloor = %v, want 2000", cfg.TesseraFloor)
		}
		if cfg.AuditInterval != 30*time.Minute {
			t.Errorf("Load() AuditInterval = %v, want 30m", cfg.AuditInterval)
		}
		if cfg.ReferenceCacheTTL != 2*time.Hour || cfg.ReferenceCacheSize != 4 {
			t.Errorf("Load() cache = %v %v", cfg.ReferenceCacheTTL, cfg.ReferenceCacheSize)
		}
	})

	t.Run("malformed toml file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[server\nport = "), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(FileEnv, path)
		if _, err := Load(); err == nil {
			t.Error("Load() expected error for malformed file")
		}
	})
}
