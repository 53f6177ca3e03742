package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageType selects the object store backend.
type StorageType string

const (
	StorageTypeMinio StorageType = "minio"
	StorageTypeS3    StorageType = "s3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	JWT      JWTConfig      `yaml:"jwt"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	Development bool     `yaml:"development"`
	// Rotation of file outputs.
	MaxSizeMB  int  `yaml:"maxSizeMB"`
	MaxBackups int  `yaml:"maxBackups"`
	MaxAgeDays int  `yaml:"maxAgeDays"`
	Compress   bool `yaml:"compress"`
}

type StorageConfig struct {
	Type  StorageType `yaml:"type"`
	Minio MinioConfig `yaml:"minio"`
	S3    S3Config    `yaml:"s3"`
}

var (
	loadOnce  sync.Once
	loaded    *Config
	loadedErr error
)

// Get loads the configuration once per process and returns the cached result.
func Get() (*Config, error) {
	loadOnce.Do(func() {
		loaded, loadedErr = Load()
	})
	return loaded, loadedErr
}

// Load builds a Config from defaults, an optional YAML file named by
// CONFIG_FILE, and the environment (a .env file is read first). Environment
// variables take precedence over the YAML file.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowOrigins:    []string{"*"},
			MaxUploadBytes:  50 << 20,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  7,
			Compress:    true,
		},
		Database: DatabaseConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300 * time.Second,
			PingTimeout:     5 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeMinio,
		},
		Queue: QueueConfig{
			RedisURL:        "redis://localhost:6379/0",
			Name:            "default",
			Concurrency:     10,
			StatusTTL:       24 * time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		JWT: JWTConfig{
			Algorithm:          "HS256",
			AccessTokenMinutes: 30,
		},
	}
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "SERVER_PORT", "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setDuration(&c.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	setList(&c.Server.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setInt64(&c.Server.MaxUploadBytes, "MAX_UPLOAD_BYTES")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Encoding, "LOG_ENCODING")
	setList(&c.Log.OutputPaths, "LOG_OUTPUT_PATHS")
	setBool(&c.Log.Development, "LOG_DEVELOPMENT")
	setInt(&c.Log.MaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.Log.MaxBackups, "LOG_MAX_BACKUPS")
	setInt(&c.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS")

	var storageType string
	setString(&storageType, "STORAGE_TYPE")
	if storageType != "" {
		c.Storage.Type = StorageType(storageType)
	}

	c.Database.applyEnv()
	c.Storage.Minio.applyEnv()
	c.Storage.S3.applyEnv()
	c.Queue.applyEnv()
	c.JWT.applyEnv()
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Queue.validate(); err != nil {
		return err
	}
	if err := c.JWT.validate(); err != nil {
		return err
	}
	switch c.Storage.Type {
	case StorageTypeMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.BucketName == "" {
			return fmt.Errorf("storage: MINIO_ENDPOINT and MINIO_BUCKET are required")
		}
	case StorageTypeS3:
		if c.Storage.S3.BucketName == "" || c.Storage.S3.Region == "" {
			return fmt.Errorf("storage: AWS_S3_BUCKET_NAME and AWS_REGION are required")
		}
	default:
		return fmt.Errorf("storage: unsupported STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server: MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
