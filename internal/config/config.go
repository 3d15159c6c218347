// Package config loads the ETL configuration from defaults, an optional YAML
// file named by ETL_CONFIG, and ETL_* environment variables, in that order of
// increasing priority.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/objectstore"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/source"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/warehouse"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/columnar"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/redact"
)

const (
	EnvPrefix  = "ETL"
	EnvConfig  = "ETL_CONFIG"
	BucketBase = "louisville_data_lake_"

	DefaultSourceBaseURL   = "https://github.com/Xanthus1/louisville-expenditure-data/releases/download/v1.0"
	DefaultCredentialsPath = "/root/credentials/gcp_service_account_key.json"
)

type Source struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	Retries   int           `mapstructure:"retries" yaml:"retries"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CachePath string        `mapstructure:"cache_path" yaml:"cache_path"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type Storage struct {
	Backend         string `mapstructure:"backend" yaml:"backend"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	LocalDir        string `mapstructure:"local_dir" yaml:"local_dir"`
}

type Warehouse struct {
	Backend         string `mapstructure:"backend" yaml:"backend"`
	Dataset         string `mapstructure:"dataset" yaml:"dataset"`
	DSN             string `mapstructure:"dsn" yaml:"dsn"`
	ChunkSize       int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

type Pipeline struct {
	FailFast     bool    `mapstructure:"fail_fast" yaml:"fail_fast"`
	Retries      int     `mapstructure:"retries" yaml:"retries"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
}

// Config is the explicit configuration value passed into every pipeline.
type Config struct {
	ProjectID      string    `mapstructure:"project_id" yaml:"project_id"`
	Source         Source    `mapstructure:"source" yaml:"source"`
	DataDir        string    `mapstructure:"data_dir" yaml:"data_dir"`
	Compression    string    `mapstructure:"compression" yaml:"compression"`
	Storage        Storage   `mapstructure:"storage" yaml:"storage"`
	Warehouse      Warehouse `mapstructure:"warehouse" yaml:"warehouse"`
	Pipeline       Pipeline  `mapstructure:"pipeline" yaml:"pipeline"`
	HealthcheckURL string    `mapstructure:"healthcheck_url" yaml:"healthcheck_url"`
	LogLevel       string    `mapstructure:"log_level" yaml:"log_level"`
	LogFormat      string    `mapstructure:"log_format" yaml:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "")
	v.SetDefault("source.base_url", DefaultSourceBaseURL)
	v.SetDefault("source.dir", "")
	v.SetDefault("source.retries", 3)
	v.SetDefault("source.timeout", 5*time.Minute)
	v.SetDefault("source.cache_path", ".cache/fetch.db")
	v.SetDefault("source.cache_ttl", 24*time.Hour)
	v.SetDefault("data_dir", ".")
	v.SetDefault("compression", string(columnar.CompressionGzip))
	v.SetDefault("storage.backend", objectstore.BackendGCS)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.credentials_path", DefaultCredentialsPath)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.local_dir", "lake")
	v.SetDefault("warehouse.backend", warehouse.BackendBigQuery)
	v.SetDefault("warehouse.dataset", "louisville_data_all")
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.chunk_size", 500000)
	v.SetDefault("warehouse.credentials_path", "")
	v.SetDefault("pipeline.fail_fast", true)
	v.SetDefault("pipeline.retries", 0)
	v.SetDefault("pipeline.rate_limit_rps", 0.0)
	v.SetDefault("healthcheck_url", "http://localhost:4200/api")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads the configuration using ETL_CONFIG from the process environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv(EnvConfig))
}

// LoadFile reads the configuration with path as the YAML config file.
// An empty path skips the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "error reading configuration file '%s'", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode configuration")
	}
	cfg.applyDerived()
	return cfg, nil
}

func (c *Config) applyDerived() {
	if strings.TrimSpace(c.Storage.Bucket) == "" && strings.TrimSpace(c.ProjectID) != "" {
		c.Storage.Bucket = BucketBase + c.ProjectID
	}
	if strings.TrimSpace(c.Warehouse.CredentialsPath) == "" {
		c.Warehouse.CredentialsPath = c.Storage.CredentialsPath
	}
}

// Validate checks the settings the ingest and load pipelines depend on.
func (c Config) Validate() error {
	if _, err := columnar.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.Source.Retries < 0 {
		return errors.Errorf("source.retries must be >= 0, got %d", c.Source.Retries)
	}
	if strings.TrimSpace(c.Source.Dir) == "" && strings.TrimSpace(c.Source.BaseURL) == "" {
		return errors.New("one of source.dir or source.base_url is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir is required")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case objectstore.BackendGCS, objectstore.BackendS3:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.Errorf("storage.bucket (or project_id) is required for the %s backend", c.Storage.Backend)
		}
	case objectstore.BackendLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir is required for the local backend")
		}
	default:
		return errors.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Warehouse.Backend) {
	case warehouse.BackendBigQuery:
		if strings.TrimSpace(c.ProjectID) == "" {
			return errors.New("project_id is required for the bigquery warehouse")
		}
	case warehouse.BackendPostgres, warehouse.BackendSQLite:
		if strings.TrimSpace(c.Warehouse.DSN) == "" {
			return errors.Errorf("warehouse.dsn is required for the %s warehouse", c.Warehouse.Backend)
		}
	default:
		return errors.Errorf("unknown warehouse.backend %q", c.Warehouse.Backend)
	}
	if strings.TrimSpace(c.Warehouse.Dataset) == "" {
		return errors.New("warehouse.dataset is required")
	}
	if c.Warehouse.ChunkSize <= 0 {
		return errors.Errorf("warehouse.chunk_size must be positive, got %d", c.Warehouse.ChunkSize)
	}
	if c.Pipeline.Retries < 0 {
		return errors.Errorf("pipeline.retries must be >= 0, got %d", c.Pipeline.Retries)
	}
	return nil
}

// ObjectStore returns the storage settings for objectstore.New.
func (c Config) ObjectStore() objectstore.Config {
	return objectstore.Config{
		Backend:         c.Storage.Backend,
		Bucket:          c.Storage.Bucket,
		CredentialsPath: c.Storage.CredentialsPath,
		Region:          c.Storage.Region,
		Endpoint:        c.Storage.Endpoint,
		LocalDir:        c.Storage.LocalDir,
	}
}

// WarehouseConfig returns the warehouse settings for warehouse.New.
func (c Config) WarehouseConfig() warehouse.Config {
	return warehouse.Config{
		Backend:         c.Warehouse.Backend,
		ProjectID:       c.ProjectID,
		DSN:             c.Warehouse.DSN,
		CredentialsPath: c.Warehouse.CredentialsPath,
	}
}

// SourceConfig returns the fetch settings for source.New.
func (c Config) SourceConfig() source.Config {
	return source.Config{
		BaseURL:   c.Source.BaseURL,
		Dir:       c.Source.Dir,
		Retries:   c.Source.Retries,
		Timeout:   c.Source.Timeout,
		CachePath: c.Source.CachePath,
		CacheTTL:  c.Source.CacheTTL,
	}
}

// WriteYAML renders the effective configuration. Credentials embedded in the
// warehouse DSN are redacted.
func (c Config) WriteYAML(w io.Writer) error {
	c.Warehouse.DSN = redact.Secrets(c.Warehouse.DSN)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode configuration")
	}
	return errors.Wrap(enc.Close(), "encode configuration")
}
