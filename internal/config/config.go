package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"randpic/internal/gallery"
	"randpic/pkg/storage"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Config is the on-disk configuration of the randpic server and admin tool.
type Config struct {
	Listen     string        `yaml:"listen"`
	PublicURL  string        `yaml:"public_url"`
	BasePrefix string        `yaml:"base_prefix"`
	Log        LogConfig     `yaml:"log"`
	Storage    StorageConfig `yaml:"storage"`
	Server     ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StorageConfig struct {
	// Driver is either "s3" or "local".
	Driver  string   `yaml:"driver"`
	DataDir string   `yaml:"data_dir"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ServerConfig struct {
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Duration wraps time.Duration so it can be written as "20s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a configuration serving ./data on :8080.
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8080",
		BasePrefix: "koishi/",
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Driver:  DriverLocal,
			DataDir: "./data",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Server: ServerConfig{
			ReadTimeout:     Duration(20 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads the configuration at path on top of the defaults and then
// applies RANDPIC_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.BasePrefix = gallery.NormalizePrefix(cfg.BasePrefix)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"RANDPIC_LISTEN":         &c.Listen,
		"RANDPIC_PUBLIC_URL":     &c.PublicURL,
		"RANDPIC_BASE_PREFIX":    &c.BasePrefix,
		"RANDPIC_LOG_LEVEL":      &c.Log.Level,
		"RANDPIC_STORAGE_DRIVER": &c.Storage.Driver,
		"RANDPIC_DATA_DIR":       &c.Storage.DataDir,
		"RANDPIC_S3_ENDPOINT":    &c.Storage.S3.Endpoint,
		"RANDPIC_S3_ACCESS_KEY":  &c.Storage.S3.AccessKey,
		"RANDPIC_S3_SECRET_KEY":  &c.Storage.S3.SecretKey,
		"RANDPIC_S3_BUCKET":      &c.Storage.S3.Bucket,
		"RANDPIC_S3_REGION":      &c.Storage.S3.Region,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("RANDPIC_S3_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RANDPIC_S3_USE_SSL %q: %w", v, err)
		}
		c.Storage.S3.UseSSL = b
	}

	durations := map[string]*Duration{
		"RANDPIC_READ_TIMEOUT":     &c.Server.ReadTimeout,
		"RANDPIC_WRITE_TIMEOUT":    &c.Server.WriteTimeout,
		"RANDPIC_SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = Duration(d)
	}

	return nil
}

// Validate reports the first problem that would stop the server starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return errors.New("listen address must not be empty")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	switch c.Storage.Driver {
	case DriverLocal:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for the local driver")
		}
	case DriverS3:
		if c.Storage.S3.Endpoint == "" {
			return errors.New("storage.s3.endpoint is required for the s3 driver")
		}
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want %s or %s)", c.Storage.Driver, DriverS3, DriverLocal)
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}

	return nil
}

// OpenStorage builds the storage engine selected by the configuration. The
// local data directory is created when missing.
func (c *Config) OpenStorage() (storage.WritableEngine, error) {
	switch c.Storage.Driver {
	case DriverLocal:
		if err := os.MkdirAll(c.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return storage.NewLocalFileStorage(c.Storage.DataDir), nil
	case DriverS3:
		s3 := c.Storage.S3
		engine, err := storage.DialMinio(storage.MinioOptions{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			Bucket:    s3.Bucket,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to object storage: %w", err)
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}
