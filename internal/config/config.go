package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for nexus.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Database    DatabaseConfig    `toml:"database"`
	ObjectStore ObjectStoreConfig `toml:"objectstore"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Session     SessionConfig     `toml:"session"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Server      ServerConfig      `toml:"server"`
}

// DatabaseConfig configures the relational store.
// This is a tagged union: Type determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type"` // "postgres", "sqlite" or "memory"

	// Postgres-specific fields.
	Host         string `toml:"host,omitempty"`
	Port         int    `toml:"port,omitempty"`
	User         string `toml:"user,omitempty"`
	Password     string `toml:"password,omitempty"`
	Database     string `toml:"database,omitempty"`
	SSLMode      string `toml:"sslmode,omitempty"`
	MaxOpenConns int    `toml:"max_open_conns,omitempty"`
	MaxIdleConns int    `toml:"max_idle_conns,omitempty"`

	// SQLite-specific fields.
	DataDir string `toml:"data_dir,omitempty"`
}

// DSN builds the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// ObjectStoreConfig configures the binary object store.
// This is a tagged union: Type determines which other fields are relevant.
type ObjectStoreConfig struct {
	Type string `toml:"type"` // "memory", "s3" or "ipfs"

	// MinObjectSize rejects payloads below this many bytes on any backend.
	MinObjectSize int64 `toml:"min_object_size,omitempty"`

	// S3-specific fields.
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// IPFS-specific fields.
	IPFSAPIURL string `toml:"ipfs_api_url,omitempty"`
}

// LedgerConfig configures the hash ledger.
// This is a tagged union: Type determines which other fields are relevant.
type LedgerConfig struct {
	Type string `toml:"type"` // "memory" or "gateway"

	// Gateway-specific fields.
	GatewayURL   string `toml:"gateway_url,omitempty"`
	GatewayToken string `toml:"gateway_token,omitempty"`
}

// SessionConfig configures the pending-action session store.
// This is a tagged union: Type determines which other fields are relevant.
type SessionConfig struct {
	Type string `toml:"type"` // "memory" or "redis"

	// Redis-specific fields.
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// EncryptionConfig configures optional at-rest photo encryption.
// An empty Type disables encryption entirely.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "", "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// NewConfig creates a Config with sensible defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		ObjectStore: ObjectStoreConfig{Type: "memory"},
		Ledger:      LedgerConfig{Type: "memory"},
		Session:     SessionConfig{Type: "memory"},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "nexus.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "nexus.key"),
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
