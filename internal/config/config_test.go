package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT",
		"DATABASE_DRIVER", "DATABASE_URL",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
		"LIBRARY_CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 4000 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("expected memory driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/library")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "8080")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: 9000\nlogging:\n  format: json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("LIBRARY_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// File values win over the environment.
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected file overlay port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format from file, got %q", cfg.Logging.Format)
	}
	// Values the file does not mention keep their environment defaults.
	if cfg.Database.Driver != "memory" {
		t.Fatalf("expected untouched driver default, got %q", cfg.Database.Driver)
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Run("postgres requires dsn", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", "postgres")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for postgres driver without DATABASE_URL")
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", "sqlite")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})

	t.Run("port out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SERVER_PORT", "70000")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for out-of-range port")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LIBRARY_CONFIG_FILE", "/does/not/exist.yaml")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
