package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// clearEnv unsets the variables Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ENVIRONMENT", "LOG_LEVEL",
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGMAX_CONNECTIONS", "PGSSLMODE",
		"QUERY_CACHE_SIZE", "QUERY_DIALECT", "QUERY_INJECTION_GUARD",
	} {
		if old, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, old) })
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
env: "test"
log_level: "warn"
database:
  host: "db.example.com"
  port: 5433
  user: "testuser"
  database: "testdb"
query:
  cache_size: 64
  dialect: "template"
`)

	t.Setenv("PGPORT", "6543")
	t.Setenv("QUERY_INJECTION_GUARD", "true")
	t.Setenv("PGPASSWORD", "from-env")

	cfg, err := Load("test-version", path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Env != "test" {
		t.Errorf("expected Env=test (from yaml), got %s", cfg.Env)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected LogLevel=warn (from yaml), got %s", cfg.LogLevel)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("expected Database.Port=6543 (from env), got %d", cfg.Database.Port)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("expected Database.Password from env, got %q", cfg.Database.Password)
	}
	if cfg.Query.CacheSize != 64 {
		t.Errorf("expected Query.CacheSize=64 (from yaml), got %d", cfg.Query.CacheSize)
	}
	if cfg.Query.Dialect != "template" {
		t.Errorf("expected Query.Dialect=template (from yaml), got %s", cfg.Query.Dialect)
	}
	if !cfg.Query.InjectionGuard {
		t.Error("expected Query.InjectionGuard=true (from env)")
	}
}

func TestLoad_PasswordNotReadFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  password: "in-yaml"
`)

	cfg, err := Load("v", path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Password != "" {
		t.Errorf("expected empty password, got %q", cfg.Database.Password)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "{}\n")

	cfg, err := Load("v", path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "local" {
		t.Errorf("expected Env=local, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("expected localhost:5432, got %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("expected MaxConnections=10, got %d", cfg.Database.MaxConnections)
	}
	if cfg.Query.CacheSize != 128 {
		t.Errorf("expected Query.CacheSize=128, got %d", cfg.Query.CacheSize)
	}
	if cfg.Query.Dialect != "raw" {
		t.Errorf("expected Query.Dialect=raw, got %s", cfg.Query.Dialect)
	}
	if cfg.Query.InjectionGuard {
		t.Error("expected Query.InjectionGuard=false")
	}
}

func TestLoad_EnvOnlyWithoutDefaultFile(t *testing.T) {
	clearEnv(t)

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	t.Setenv("PGHOST", "env.example.com")
	t.Setenv("QUERY_DIALECT", "template")

	cfg, err := Load("v", "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Host != "env.example.com" {
		t.Errorf("expected Database.Host from env, got %s", cfg.Database.Host)
	}
	if cfg.Query.Dialect != "template" {
		t.Errorf("expected Query.Dialect=template, got %s", cfg.Query.Dialect)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load("v", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad log level", "log_level: loud\n", "log_level"},
		{"bad dialect", "query:\n  dialect: pyformat\n", "query.dialect"},
		{"negative cache", "query:\n  cache_size: -1\n", "query.cache_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load("v", writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Env: "production", LogLevel: "warn", Version: "v"}

	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("expected warn to be enabled")
	}

	cfg.LogLevel = "nonsense"
	if _, err := cfg.NewLogger(); err == nil {
		t.Error("expected error for bad level")
	}
}
