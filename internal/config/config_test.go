package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"CONFIG_FILE",
	"CONNECTION_STRING",
	"DATABASE_NAME",
	"SERVER_PORT",
	"LOG_LEVEL",
	"LLM_ENDPOINT",
	"LLM_API_KEY",
	"LLM_MODELS",
	"SENTRY_DSN",
	"ENV",
	"API_KEYS",
	"ATTACHMENTS_FOLDER",
	"ATTACHMENTS_ROUTE_PATH",
	"MINIMUM_PASSWORD_LENGTH",
	"USE_OBJECT_CACHE",
	"CACHE_DRIVER",
	"SHUTDOWN_GRACE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ConnectionString() != defaultConnection {
		t.Errorf("expected default connection %q, got %q", defaultConnection, cfg.ConnectionString())
	}

	if cfg.DatabaseName() != defaultBackend {
		t.Errorf("expected default backend %q, got %q", defaultBackend, cfg.DatabaseName())
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.LLMModels != nil {
		t.Errorf("expected nil LLMModels, got %v", cfg.LLMModels)
	}

	if cfg.MinimumPasswordLength != defaultMinimumPasswordLength {
		t.Errorf("expected minimum password length %d, got %d", defaultMinimumPasswordLength, cfg.MinimumPasswordLength)
	}

	if cfg.IsRestAPIEnabled() {
		t.Errorf("expected REST API to be disabled without API keys")
	}

	if cfg.AttachmentsURLPath() != "/Attachments" {
		t.Errorf("expected attachments URL path /Attachments, got %q", cfg.AttachmentsURLPath())
	}

	if cfg.CacheDriver != defaultCacheDriver {
		t.Errorf("expected cache driver %q, got %q", defaultCacheDriver, cfg.CacheDriver)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONNECTION_STRING", "mongodb://localhost:27017/wiki")
	t.Setenv("DATABASE_NAME", "MongoDB")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_ENDPOINT", "https://example.com/llm")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("LLM_MODELS", `["alpha","beta"]`)
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("ENV", "production")
	t.Setenv("API_KEYS", " one , ,two")
	t.Setenv("USE_OBJECT_CACHE", "true")
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("SHUTDOWN_GRACE", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ConnectionString() != "mongodb://localhost:27017/wiki" {
		t.Errorf("unexpected connection string %q", cfg.ConnectionString())
	}

	if cfg.DatabaseName() != "MongoDB" {
		t.Errorf("expected database name MongoDB, got %q", cfg.DatabaseName())
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}

	if cfg.LLMEndpoint != "https://example.com/llm" {
		t.Errorf("expected LLM endpoint https://example.com/llm, got %q", cfg.LLMEndpoint)
	}

	if cfg.LLMAPIKey != "secret" {
		t.Errorf("expected LLM API key secret, got %q", cfg.LLMAPIKey)
	}

	expectedModels := []string{"alpha", "beta"}
	if len(cfg.LLMModels) != len(expectedModels) {
		t.Fatalf("expected %d models, got %d", len(expectedModels), len(cfg.LLMModels))
	}

	for i, model := range cfg.LLMModels {
		if model != expectedModels[i] {
			t.Errorf("expected model %q at index %d, got %q", expectedModels[i], i, model)
		}
	}

	if cfg.SentryDSN != "dsn" {
		t.Errorf("expected Sentry DSN dsn, got %q", cfg.SentryDSN)
	}

	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got %q", cfg.Environment)
	}

	if len(cfg.APIKeys) != 2 || cfg.APIKeys[0] != "one" || cfg.APIKeys[1] != "two" {
		t.Errorf("expected API keys [one two], got %v", cfg.APIKeys)
	}

	if !cfg.IsRestAPIEnabled() {
		t.Errorf("expected REST API to be enabled")
	}

	if !cfg.UseObjectCache || cfg.CacheDriver != "redis" {
		t.Errorf("expected redis object cache, got enabled=%v driver=%q", cfg.UseObjectCache, cfg.CacheDriver)
	}

	if cfg.ShutdownGrace != 3*time.Second {
		t.Errorf("expected shutdown grace 3s, got %s", cfg.ShutdownGrace)
	}
}

func TestLoadWithModelObject(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODELS", `{"models":["gamma","delta"]}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	expected := []string{"gamma", "delta"}
	if len(cfg.LLMModels) != len(expected) {
		t.Fatalf("expected %d models, got %d", len(expected), len(cfg.LLMModels))
	}

	for i, model := range cfg.LLMModels {
		if model != expected[i] {
			t.Errorf("expected model %q at index %d, got %q", expected[i], i, model)
		}
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "roadwiki.yaml")
	content := `connectionString: "badger://memory"
databaseName: badger
serverPort: 7070
attachmentsRoutePath: "/files/"
minimumPasswordLength: 10
apiKeys: ["k1"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7171")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DatabaseName() != "badger" || cfg.ConnectionString() != "badger://memory" {
		t.Errorf("expected badger settings from file, got %q %q", cfg.DatabaseName(), cfg.ConnectionString())
	}

	if cfg.ServerPort != 7171 {
		t.Errorf("expected env to override port, got %d", cfg.ServerPort)
	}

	if cfg.AttachmentsRoutePath != "files" {
		t.Errorf("expected stripped route path files, got %q", cfg.AttachmentsRoutePath)
	}

	if cfg.AttachmentsURLPath() != "/files" {
		t.Errorf("expected URL path /files, got %q", cfg.AttachmentsURLPath())
	}

	if cfg.MinimumPasswordLength != 10 {
		t.Errorf("expected minimum password length 10, got %d", cfg.MinimumPasswordLength)
	}

	if !cfg.IsRestAPIEnabled() {
		t.Errorf("expected REST API enabled from file keys")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for missing config file, got nil")
	}

	if !strings.Contains(err.Error(), "reading config file") {
		t.Fatalf("expected error to mention reading config file, got %v", err)
	}
}

func TestLoadRejectsEmptyAttachmentsRoute(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTACHMENTS_ROUTE_PATH", "///")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for empty attachments route, got nil")
	}

	if !strings.Contains(err.Error(), "attachments route path") {
		t.Fatalf("expected error to mention attachments route path, got %v", err)
	}
}

func TestAttachmentsDirectoryPathAddsSeparator(t *testing.T) {
	cfg := &Config{AttachmentsFolder: filepath.Join("data", "files")}

	want := filepath.Join("data", "files") + string(filepath.Separator)
	if got := cfg.AttachmentsDirectoryPath(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	cfg.AttachmentsFolder = want
	if got := cfg.AttachmentsDirectoryPath(); got != want {
		t.Errorf("expected separator not to be doubled, got %q", got)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "invalid")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid port, got nil")
	}

	if !strings.Contains(err.Error(), "invalid SERVER_PORT value") {
		t.Fatalf("expected error to mention invalid SERVER_PORT value, got %v", err)
	}
}

func TestLoadInvalidModels(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODELS", `{"models":null}`)

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error when models JSON is invalid, got nil")
	}

	if !strings.Contains(err.Error(), "parsing LLM_MODELS") {
		t.Fatalf("expected error to mention parsing LLM_MODELS, got %v", err)
	}
}
