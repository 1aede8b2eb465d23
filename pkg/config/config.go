package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "COINBOOK"

// Config holds the runtime settings shared by the CLI and the server.
type Config struct {
	LogLevel    string
	PageSize    int
	ChunkSize   int
	MaxFileSize int64
	Debounce    time.Duration
	ExportLabel string
	RecordsPath string
	Server      ServerConfig
}

type ServerConfig struct {
	Addr string
	// ProgressRate caps progress frames per second on a websocket.
	ProgressRate float64
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"page-size":    "page_size",
	"chunk-size":   "chunk_size",
	"max-size":     "max_file_size",
	"debounce":     "debounce",
	"label":        "export.label",
	"records-path": "input.records_path",
	"addr":         "server.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("page_size", 50)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("max_file_size", 50*1024*1024)
	v.SetDefault("debounce", 300*time.Millisecond)
	v.SetDefault("export.label", "عملات")
	v.SetDefault("input.records_path", "")
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("server.progress_rate", 20.0)
}

// Default returns the built-in settings.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Build loads configuration from defaults, an optional config file, a .env
// file, COINBOOK_* environment variables and finally any flags that were set.
func Build(path string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("coinbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "coinbook"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		LogLevel:    v.GetString("log.level"),
		PageSize:    v.GetInt("page_size"),
		ChunkSize:   v.GetInt("chunk_size"),
		MaxFileSize: v.GetInt64("max_file_size"),
		Debounce:    v.GetDuration("debounce"),
		ExportLabel: v.GetString("export.label"),
		RecordsPath: v.GetString("input.records_path"),
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ProgressRate: v.GetFloat64("server.progress_rate"),
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.PageSize <= 0:
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	case c.MaxFileSize <= 0:
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	case c.Debounce < 0:
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	case c.ExportLabel == "":
		return errors.New("export.label must not be empty")
	}
	return nil
}
