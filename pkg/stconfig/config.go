// Package stconfig loads the sqlitrace configuration file.
package stconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/crowdsecurity/go-cs-lib/ptr"

	"github.com/crowdsecurity/sqlitrace/pkg/logging"
	"github.com/crowdsecurity/sqlitrace/pkg/sqlisig"
)

const (
	defMaxUploadSize = 32 << 20
	defListenURI     = "127.0.0.1:8080"
	defCacheSize     = 128
	defCacheTTL      = 10 * time.Minute
	defCacheStrategy = "LRU"
)

// CommonCfg holds the logging settings.
type CommonCfg struct {
	LogMedia     string     `yaml:"log_media"`
	LogDir       string     `yaml:"log_dir,omitempty"` // if LogMedia = file
	LogLevel     *log.Level `yaml:"log_level"`
	LogFormat    string     `yaml:"log_format,omitempty"`
	LogMaxSize   int        `yaml:"log_max_size,omitempty"`
	LogMaxFiles  int        `yaml:"log_max_files,omitempty"`
	LogMaxAge    int        `yaml:"log_max_age,omitempty"`
	CompressLogs *bool      `yaml:"compress_logs,omitempty"`
}

func (c *CommonCfg) GetFormat() string {
	return c.LogFormat
}

func (c *CommonCfg) GetMedia() string {
	return c.LogMedia
}

func (c *CommonCfg) NewRotatingLogger(filename string) *lumberjack.Logger {
	logger := &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, filename),
		MaxSize:    500, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	if c.LogMaxSize != 0 {
		logger.MaxSize = c.LogMaxSize
	}

	if c.LogMaxFiles != 0 {
		logger.MaxBackups = c.LogMaxFiles
	}

	if c.LogMaxAge != 0 {
		logger.MaxAge = c.LogMaxAge
	}

	if c.CompressLogs != nil {
		logger.Compress = *c.CompressLogs
	}

	return logger
}

// DetectionCfg selects the signature families. Empty means all of them.
type DetectionCfg struct {
	Families []string `yaml:"families,omitempty"`
}

// Catalog compiles the signature catalog for the configured families.
func (d *DetectionCfg) Catalog() (*sqlisig.Catalog, error) {
	families := make([]sqlisig.Family, 0, len(d.Families))

	for _, name := range d.Families {
		f, err := sqlisig.ParseFamily(name)
		if err != nil {
			return nil, err
		}

		families = append(families, f)
	}

	return sqlisig.New(families...)
}

type OutputCfg struct {
	Format string `yaml:"format"`
	Color  string `yaml:"color"`
}

// CacheCfg sizes the in-memory result cache of the API. A zero size
// disables it.
type CacheCfg struct {
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	Strategy string        `yaml:"strategy,omitempty"` // LRU, LFU or ARC
}

type APICfg struct {
	ListenURI     string    `yaml:"listen_uri,omitempty"`
	MaxUploadSize int64     `yaml:"max_upload_size,omitempty"`
	EnableMetrics *bool     `yaml:"enable_metrics"`
	RateLimit     float64   `yaml:"rate_limit,omitempty"` // uploads per second, 0 is unlimited
	RateBurst     int       `yaml:"rate_burst,omitempty"`
	Cache         *CacheCfg `yaml:"cache"`
}

type Config struct {
	Common    *CommonCfg    `yaml:"common"`
	Detection *DetectionCfg `yaml:"detection"`
	Output    *OutputCfg    `yaml:"output"`
	API       *APICfg       `yaml:"api"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Common: &CommonCfg{
			LogMedia:  "stdout",
			LogDir:    "/var/log/",
			LogLevel:  ptr.Of(log.InfoLevel),
			LogFormat: "text",
		},
		Detection: &DetectionCfg{},
		Output: &OutputCfg{
			Format: "human",
			Color:  "auto",
		},
		API: &APICfg{
			ListenURI:     defListenURI,
			MaxUploadSize: defMaxUploadSize,
			EnableMetrics: ptr.Of(true),
			Cache: &CacheCfg{
				Size:     defCacheSize,
				TTL:      defCacheTTL,
				Strategy: defCacheStrategy,
			},
		},
	}
}

// NewConfig reads the configuration file on top of the defaults.
// Environment variables are expanded before parsing, unknown keys are errors.
// An empty path returns the defaults.
func NewConfig(configFile string) (*Config, error) {
	cfg := NewDefaultConfig()

	if configFile == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnv(string(content), os.LookupEnv)

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("while parsing %s: %w", configFile, err)
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", configFile, err)
	}

	return cfg, nil
}

// a section set to null in the file must not leave a nil pointer behind
func (c *Config) fillDefaults() {
	def := NewDefaultConfig()

	if c.Common == nil {
		c.Common = def.Common
	}

	if c.Detection == nil {
		c.Detection = def.Detection
	}

	if c.Output == nil {
		c.Output = def.Output
	}

	if c.API == nil {
		c.API = def.API
	}

	if c.API.EnableMetrics == nil {
		c.API.EnableMetrics = def.API.EnableMetrics
	}

	if c.API.Cache == nil {
		c.API.Cache = &CacheCfg{}
	}

	if c.API.Cache.Strategy == "" {
		c.API.Cache.Strategy = defCacheStrategy
	}
}

func (c *Config) Validate() error {
	if !logging.IsConsole(c.Common.LogMedia) && c.Common.LogMedia != logging.MediaFile {
		return fmt.Errorf("common.log_media: unknown value %q, expected stdout, stderr or file", c.Common.LogMedia)
	}

	switch c.Common.LogFormat {
	case "text", "json", "":
	default:
		return fmt.Errorf("common.log_format: unknown value %q, expected text or json", c.Common.LogFormat)
	}

	for _, name := range c.Detection.Families {
		if _, err := sqlisig.ParseFamily(name); err != nil {
			return fmt.Errorf("detection.families: %w", err)
		}
	}

	switch c.Output.Format {
	case "human", "json", "raw":
	default:
		return fmt.Errorf("output.format: unknown value %q, expected human, json or raw", c.Output.Format)
	}

	switch c.Output.Color {
	case "yes", "no", "auto":
	default:
		return fmt.Errorf("output.color: unknown value %q, expected yes, no or auto", c.Output.Color)
	}

	if c.API.ListenURI == "" {
		return errors.New("api.listen_uri: cannot be empty")
	}

	if c.API.MaxUploadSize <= 0 {
		return fmt.Errorf("api.max_upload_size: must be positive, got %d", c.API.MaxUploadSize)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit: cannot be negative, got %g", c.API.RateLimit)
	}

	if c.API.RateBurst < 0 {
		return fmt.Errorf("api.rate_burst: cannot be negative, got %d", c.API.RateBurst)
	}

	if c.API.Cache.Size < 0 {
		return fmt.Errorf("api.cache.size: cannot be negative, got %d", c.API.Cache.Size)
	}

	switch c.API.Cache.Strategy {
	case "LRU", "LFU", "ARC":
	default:
		return fmt.Errorf("api.cache.strategy: unknown value %q, expected LRU, LFU or ARC", c.API.Cache.Strategy)
	}

	return nil
}
