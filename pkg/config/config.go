// Package config provides configuration handling for crewdeck.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. CREWDECK_API_BASE_URL
const EnvPrefix = "CREWDECK"

// Config represents the application configuration
type Config struct {
	// API is the orchestration backend
	API APIConfig `json:"api" yaml:"api"`

	// Monitor selects how run pages receive events
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`

	// Redis is used by the redis monitor mode
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configuration
	Logging logging.LogConfig `json:"logging" yaml:"logging"`
}

// Duration is a time.Duration written as "2s" in files and env
type Duration time.Duration

// UnmarshalText accepts Go duration strings or a bare number of seconds
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText writes the duration in Go notation
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// APIConfig contains backend connection settings
type APIConfig struct {
	// BaseURL of the backend, without /api/v1
	BaseURL string `json:"base_url" yaml:"base_url" split_words:"true"`

	// Token is the bearer token sent with every request
	Token string `json:"token,omitempty" yaml:"token,omitempty" split_words:"true"`

	// Timeout per request
	Timeout Duration `json:"timeout" yaml:"timeout" split_words:"true"`
}

// MonitorConfig contains live channel settings
type MonitorConfig struct {
	// Mode is websocket, poll, redis or sse
	Mode string `json:"mode" yaml:"mode" split_words:"true"`

	// PollInterval between snapshot fetches
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" split_words:"true"`

	// FallbackToPoll switches to polling when the push channel fails
	FallbackToPoll bool `json:"fallback_to_poll" yaml:"fallback_to_poll" split_words:"true"`

	// Retention keeps finished runs in memory this long
	Retention Duration `json:"retention" yaml:"retention" split_words:"true"`

	// RelayURL is the crewdeck server followed in sse mode
	RelayURL string `json:"relay_url,omitempty" yaml:"relay_url,omitempty" split_words:"true"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" split_words:"true"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" split_words:"true"`
	DB       int    `json:"db" yaml:"db" split_words:"true"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host" yaml:"host" split_words:"true"`

	// Port to listen on
	Port int `json:"port" yaml:"port" split_words:"true"`

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" split_words:"true"`

	// KickoffRateLimit is the number of run requests allowed per minute per client
	KickoffRateLimit int `json:"kickoff_rate_limit" yaml:"kickoff_rate_limit" split_words:"true"`

	// TLS configuration
	TLS TLSConfig `json:"tls" yaml:"tls"`
}

// TLSConfig contains TLS settings
type TLSConfig struct {
	// Enabled indicates whether TLS is enabled
	Enabled bool `json:"enabled" yaml:"enabled" split_words:"true"`

	// CertFile is the path to the certificate file
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty" split_words:"true"`

	// KeyFile is the path to the key file
	KeyFile string `json:"key_file,omitempty" yaml:"key_file,omitempty" split_words:"true"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageConfig contains preference storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type" yaml:"type" split_words:"true"` // "memory", "file", "redis", "dynamodb", "postgresql"

	// Namespace scopes preferences, e.g. per profile
	Namespace string `json:"namespace" yaml:"namespace" split_words:"true"`

	File     FileConfig     `json:"file" yaml:"file"`
	Redis    RedisKeyConfig `json:"redis" yaml:"redis"`
	DynamoDB DynamoDBConfig `json:"dynamodb" yaml:"dynamodb"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
}

// FileConfig contains file storage settings
type FileConfig struct {
	// Path of the preferences document; "~" expands to the home directory
	Path string `json:"path" yaml:"path" split_words:"true"`
}

// RedisKeyConfig contains the redis storage key layout. The connection
// comes from Config.Redis.
type RedisKeyConfig struct {
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" split_words:"true"`
}

// DynamoDBConfig contains DynamoDB settings
type DynamoDBConfig struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region" split_words:"true"`

	// Endpoint is the DynamoDB endpoint (for local development)
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" split_words:"true"`

	// TablePrefix is the prefix for all tables
	TablePrefix string `json:"table_prefix" yaml:"table_prefix" split_words:"true"`

	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" split_words:"true"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" split_words:"true"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host" split_words:"true"`
	Port     int    `json:"port" yaml:"port" split_words:"true"`
	Database string `json:"database" yaml:"database" split_words:"true"`
	User     string `json:"user" yaml:"user" split_words:"true"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" split_words:"true"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode" split_words:"true"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(30 * time.Second),
		},
		Monitor: MonitorConfig{
			Mode:           string(events.ModeWebSocket),
			PollInterval:   Duration(events.DefaultPollInterval),
			FallbackToPoll: true,
			Retention:      Duration(5 * time.Minute),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8090,
			KickoffRateLimit: 30,
		},
		Storage: StorageConfig{
			Type:      string(storage.FileProviderType),
			Namespace: storage.DefaultNamespace,
			File: FileConfig{
				Path: "~/.crewdeck/preferences.json",
			},
			Redis: RedisKeyConfig{
				KeyPrefix: "crewdeck:prefs:",
			},
			DynamoDB: DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "crewdeck_",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "crewdeck",
				User:     "crewdeck",
				SSLMode:  "disable",
			},
		},
		Logging: logging.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads the configuration from a file on top of the defaults.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load builds the effective configuration: defaults, then the file at path
// if it exists, then .env, then CREWDECK_* environment variables.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config with CREWDECK_* environment variables
func ApplyEnv(config *Config) error {
	groups := []struct {
		prefix string
		spec   interface{}
	}{
		{EnvPrefix + "_API", &config.API},
		{EnvPrefix + "_MONITOR", &config.Monitor},
		{EnvPrefix + "_REDIS", &config.Redis},
		{EnvPrefix + "_SERVER", &config.Server},
		{EnvPrefix + "_STORAGE", &config.Storage},
		{EnvPrefix + "_LOGGING", &config.Logging},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return fmt.Errorf("failed to apply %s_* environment: %w", g.prefix, err)
		}
	}
	return nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch events.Mode(c.Monitor.Mode) {
	case events.ModeWebSocket, events.ModePoll, events.ModeRedis, events.ModeSSE, "":
	default:
		return fmt.Errorf("unknown monitor mode: %s", c.Monitor.Mode)
	}
	if c.Monitor.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if c.Monitor.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires cert_file and key_file")
	}
	return nil
}

// ProviderConfig translates the storage section for storage.NewProvider
func (c *Config) ProviderConfig() (storage.ProviderConfig, error) {
	pc := storage.ProviderConfig{Type: storage.ProviderType(c.Storage.Type)}

	switch pc.Type {
	case storage.MemoryProviderType:
	case storage.FileProviderType:
		path, err := ExpandHome(c.Storage.File.Path)
		if err != nil {
			return pc, err
		}
		pc.File = &storage.FileProviderConfig{Path: path}
	case storage.RedisProviderType:
		pc.Redis = &storage.RedisProviderConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Storage.Redis.KeyPrefix,
		}
	case storage.DynamoDBProviderType:
		pc.DynamoDB = &storage.DynamoDBProviderConfig{
			Region:      c.Storage.DynamoDB.Region,
			Endpoint:    c.Storage.DynamoDB.Endpoint,
			TablePrefix: c.Storage.DynamoDB.TablePrefix,
			AccessKey:   c.Storage.DynamoDB.AccessKey,
			SecretKey:   c.Storage.DynamoDB.SecretKey,
		}
	case storage.PostgreSQLProviderType:
		pc.PostgreSQL = &storage.PostgreSQLProviderConfig{
			Host:     c.Storage.Postgres.Host,
			Port:     c.Storage.Postgres.Port,
			User:     c.Storage.Postgres.User,
			Password: c.Storage.Postgres.Password,
			Database: c.Storage.Postgres.Database,
			SSLMode:  c.Storage.Postgres.SSLMode,
		}
	default:
		return pc, fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	return pc, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// SaveConfig saves the configuration to a file, as YAML or JSON by extension
func SaveConfig(config *Config, path string) error {
	// Create the directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Tokens may be stored, so keep the file private
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
