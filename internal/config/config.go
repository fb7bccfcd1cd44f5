package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration values for the roadwiki server.
type Config struct {
	DatabaseConnection string `yaml:"connectionString"`
	DatabaseBackend    string `yaml:"databaseName"`

	ServerPort    int           `yaml:"serverPort"`
	LogLevel      string        `yaml:"logLevel"`
	SentryDSN     string        `yaml:"sentryDsn"`
	Environment   string        `yaml:"environment"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`

	LLMEndpoint string   `yaml:"llmEndpoint"`
	LLMAPIKey   string   `yaml:"llmApiKey"`
	LLMModels   []string `yaml:"llmModels"`

	AdminRoleName         string   `yaml:"adminRoleName"`
	EditorRoleName        string   `yaml:"editorRoleName"`
	APIKeys               []string `yaml:"apiKeys"`
	AttachmentsFolder     string   `yaml:"attachmentsFolder"`
	AttachmentsRoutePath  string   `yaml:"attachmentsRoutePath"`
	MinimumPasswordLength int      `yaml:"minimumPasswordLength"`
	IsPublicSite          bool     `yaml:"isPublicSite"`
	Installed             bool     `yaml:"installed"`

	UseObjectCache bool          `yaml:"useObjectCache"`
	CacheDriver    string        `yaml:"cacheDriver"`
	RedisAddr      string        `yaml:"redisAddr"`
	ObjectCacheTTL time.Duration `yaml:"objectCacheTtl"`

	SearchIndexPath         string `yaml:"searchIndexPath"`
	IgnoreSearchIndexErrors bool   `yaml:"ignoreSearchIndexErrors"`

	RateLimitRPS       float64       `yaml:"rateLimitRps"`
	RateLimitBurst     int           `yaml:"rateLimitBurst"`
	RateLimitClientTTL time.Duration `yaml:"rateLimitClientTtl"`
}

const (
	defaultConnection            = "sqlite://./data/roadwiki.db"
	defaultBackend               = "sqlite"
	defaultServerPort            = 8080
	defaultLogLevel              = "info"
	defaultEnvironment           = "development"
	defaultShutdownGrace         = 10 * time.Second
	defaultAdminRoleName         = "Admin"
	defaultEditorRoleName        = "Editor"
	defaultAttachmentsFolder     = "./data/attachments"
	defaultAttachmentsRoutePath  = "Attachments"
	defaultMinimumPasswordLength = 6
	defaultCacheDriver           = "memory"
	defaultObjectCacheTTL        = 5 * time.Minute
	defaultSearchIndexPath       = "./data/search"
	defaultRateLimitRPS          = 5
	defaultRateLimitBurst        = 20
	defaultRateLimitClientTTL    = 10 * time.Minute
)

func defaults() *Config {
	return &Config{
		DatabaseConnection:    defaultConnection,
		DatabaseBackend:       defaultBackend,
		ServerPort:            defaultServerPort,
		LogLevel:              defaultLogLevel,
		Environment:           defaultEnvironment,
		ShutdownGrace:         defaultShutdownGrace,
		AdminRoleName:         defaultAdminRoleName,
		EditorRoleName:        defaultEditorRoleName,
		AttachmentsFolder:     defaultAttachmentsFolder,
		AttachmentsRoutePath:  defaultAttachmentsRoutePath,
		MinimumPasswordLength: defaultMinimumPasswordLength,
		IsPublicSite:          true,
		CacheDriver:           defaultCacheDriver,
		ObjectCacheTTL:        defaultObjectCacheTTL,
		SearchIndexPath:       defaultSearchIndexPath,
		RateLimitRPS:          defaultRateLimitRPS,
		RateLimitBurst:        defaultRateLimitBurst,
		RateLimitClientTTL:    defaultRateLimitClientTTL,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return eris.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DatabaseConnection, "CONNECTION_STRING")
	setString(&c.DatabaseBackend, "DATABASE_NAME")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SentryDSN, "SENTRY_DSN")
	setString(&c.Environment, "ENV")
	setString(&c.LLMEndpoint, "LLM_ENDPOINT")
	setString(&c.LLMAPIKey, "LLM_API_KEY")
	setString(&c.AdminRoleName, "ADMIN_ROLE_NAME")
	setString(&c.EditorRoleName, "EDITOR_ROLE_NAME")
	setString(&c.AttachmentsFolder, "ATTACHMENTS_FOLDER")
	setString(&c.AttachmentsRoutePath, "ATTACHMENTS_ROUTE_PATH")
	setString(&c.CacheDriver, "CACHE_DRIVER")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.SearchIndexPath, "SEARCH_INDEX_PATH")

	if modelsJSON := os.Getenv("LLM_MODELS"); modelsJSON != "" {
		models, err := parseModels(modelsJSON)
		if err != nil {
			return eris.Wrap(err, "parsing LLM_MODELS")
		}
		c.LLMModels = models
	}

	if keys := os.Getenv("API_KEYS"); keys != "" {
		c.APIKeys = splitList(keys)
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"SERVER_PORT", &c.ServerPort},
		{"MINIMUM_PASSWORD_LENGTH", &c.MinimumPasswordLength},
		{"RATE_LIMIT_BURST", &c.RateLimitBurst},
	}
	for _, item := range ints {
		if err := setInt(item.target, item.key); err != nil {
			return err
		}
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{"IS_PUBLIC_SITE", &c.IsPublicSite},
		{"INSTALLED", &c.Installed},
		{"USE_OBJECT_CACHE", &c.UseObjectCache},
		{"IGNORE_SEARCH_INDEX_ERRORS", &c.IgnoreSearchIndexErrors},
	}
	for _, item := range bools {
		if err := setBool(item.target, item.key); err != nil {
			return err
		}
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SHUTDOWN_GRACE", &c.ShutdownGrace},
		{"OBJECT_CACHE_TTL", &c.ObjectCacheTTL},
		{"RATE_LIMIT_CLIENT_TTL", &c.RateLimitClientTTL},
	}
	for _, item := range durations {
		if err := setDuration(item.target, item.key); err != nil {
			return err
		}
	}

	if value := os.Getenv("RATE_LIMIT_RPS"); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", value)
		}
		c.RateLimitRPS = rps
	}

	return nil
}

func (c *Config) normalize() error {
	route := strings.Trim(strings.TrimSpace(c.AttachmentsRoutePath), "/")
	if route == "" {
		return eris.New("attachments route path must not be empty")
	}
	c.AttachmentsRoutePath = route

	if c.MinimumPasswordLength < 1 {
		return eris.Errorf("minimum password length must be positive, got %d", c.MinimumPasswordLength)
	}

	c.CacheDriver = strings.ToLower(strings.TrimSpace(c.CacheDriver))
	return nil
}

// ConnectionString implements storage.Settings.
func (c *Config) ConnectionString() string {
	return c.DatabaseConnection
}

// DatabaseName implements storage.Settings.
func (c *Config) DatabaseName() string {
	return c.DatabaseBackend
}

// IsRestAPIEnabled reports whether at least one API key is configured.
func (c *Config) IsRestAPIEnabled() bool {
	return len(c.APIKeys) > 0
}

// AttachmentsDirectoryPath returns the attachments folder with a trailing separator.
func (c *Config) AttachmentsDirectoryPath() string {
	path := c.AttachmentsFolder
	if !strings.HasSuffix(path, string(filepath.Separator)) {
		path += string(filepath.Separator)
	}
	return path
}

// AttachmentsURLPath returns the URL prefix attachments are served under.
func (c *Config) AttachmentsURLPath() string {
	return "/" + c.AttachmentsRoutePath
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	*target = parsed
	return nil
}

func setBool(target *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	*target = parsed
	return nil
}

func setDuration(target *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	*target = parsed
	return nil
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func parseModels(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `models` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		return arrayInput, nil
	}

	var objectInput struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Models) == 0 {
		return nil, eris.New("models list is empty")
	}

	return objectInput.Models, nil
}
