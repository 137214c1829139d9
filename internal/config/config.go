package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultK             = 10
	DefaultSeparator     = ";"
	DefaultPositiveLabel = "yes"
	DefaultServerAddr    = ":8080"
	DefaultCacheSize     = 1024

	OrderNearestFirst  = "nearest_first"
	OrderFarthestFirst = "farthest_first"
)

type Config struct {
	Dir string `yaml:"dir"`

	// Classifier
	K                    int    `yaml:"k"`
	Workers              int    `yaml:"workers"` // 0 means GOMAXPROCS
	ExcludeLastAttribute bool   `yaml:"exclude_last_attribute"`
	Order                string `yaml:"order"`

	Loader      LoaderConfig      `yaml:"loader"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

type LoaderConfig struct {
	Separator     string `yaml:"separator"`
	SkipHeader    bool   `yaml:"skip_header"`
	PositiveLabel string `yaml:"positive_label"`
	// SQL sources only
	Table       string `yaml:"table"`
	TestTable   string `yaml:"test_table"`
	LabelColumn string `yaml:"label_column"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int     `yaml:"burst"`
}

type CacheConfig struct {
	Size int `yaml:"size"` // 0 disables prediction memoisation
}

type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// NewConfig returns the default configuration rooted at dir. Relative data
// paths are resolved against dir by ResolvePath.
func NewConfig(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Config{
		Dir:                  abs,
		K:                    DefaultK,
		ExcludeLastAttribute: true,
		Order:                OrderNearestFirst,
		Loader: LoaderConfig{
			Separator:     DefaultSeparator,
			SkipHeader:    true,
			PositiveLabel: DefaultPositiveLabel,
			Table:         "train",
			TestTable:     "test",
			LabelColumn:   "label",
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Cache: CacheConfig{
			Size: DefaultCacheSize,
		},
	}, nil
}

// FromFile overlays the YAML file at path on the defaults. The directory of
// the file becomes Dir unless the file sets it.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	conf, err := NewConfig(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("config: k must be positive, got %d", c.K)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	switch c.Order {
	case OrderNearestFirst, OrderFarthestFirst:
	default:
		return fmt.Errorf("config: unknown order %q", c.Order)
	}
	if c.Loader.Separator == "" {
		return fmt.Errorf("config: loader separator must not be empty")
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("config: rate limit and burst must not be negative")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("config: cache size must not be negative")
	}
	return nil
}

// ResolvePath joins relative paths onto Dir. URIs and absolute paths are
// returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || hasScheme(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func hasScheme(p string) bool {
	for i := 0; i < len(p); i++ {
		switch c := p[i]; {
		case c == ':':
			return i > 1 && i+2 < len(p) && p[i+1] == '/' && p[i+2] == '/'
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		default:
			return false
		}
	}
	return false
}
