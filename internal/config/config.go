package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "PARTY"

const (
	STORAGE_MEMORY = "memory"
	STORAGE_SQLITE = "sqlite"
)

type AppConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	PublicURL string `mapstructure:"public_url"`
	StaticDir string `mapstructure:"static_dir"`

	Storage  StorageConfig  `mapstructure:"storage"`
	Registry RegistryConfig `mapstructure:"registry"`
	Presence PresenceConfig `mapstructure:"presence"`
	WS       WSConfig       `mapstructure:"ws"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type RegistryConfig struct {
	CodeAttempts int `mapstructure:"code_attempts"`
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HostGrace         time.Duration `mapstructure:"host_grace"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

type WSConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "")
	v.SetDefault("static_dir", "./web")

	v.SetDefault("storage.driver", STORAGE_MEMORY)
	v.SetDefault("storage.sqlite_path", "party.db")

	v.SetDefault("registry.code_attempts", 8)

	v.SetDefault("presence.heartbeat_interval", 10*time.Second)
	v.SetDefault("presence.timeout", 30*time.Second)
	v.SetDefault("presence.host_grace", time.Minute)
	v.SetDefault("presence.sweep_interval", 10*time.Second)

	v.SetDefault("ws.rate_limit", 10.0)
	v.SetDefault("ws.rate_burst", 20)
}

// BindFlags registers the command line overrides. Flag names use dashes; the
// matching config key uses underscores.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a JSON config file (default ./app_config.json when present)")
	fs.String("host", "", "address to bind to (env: PARTY_HOST)")
	fs.IntP("port", "p", 0, "port to listen on (env: PARTY_PORT)")
	fs.String("log-level", "", "debug, info, warn or error (env: PARTY_LOG_LEVEL)")
	fs.String("public-url", "", "externally visible base URL used in QR codes (env: PARTY_PUBLIC_URL)")
	fs.String("storage-driver", "", "memory or sqlite (env: PARTY_STORAGE_DRIVER)")
	fs.String("sqlite-path", "", "database file for the sqlite driver (env: PARTY_STORAGE_SQLITE_PATH)")
}

var flagKeys = map[string]string{
	"host":           "host",
	"port":           "port",
	"log-level":      "log_level",
	"public-url":     "public_url",
	"storage-driver": "storage.driver",
	"sqlite-path":    "storage.sqlite_path",
}

// Load resolves the configuration from defaults, the optional config file,
// PARTY_* environment variables and changed flags, in increasing precedence.
func Load(fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
				}
			}
		}
	}

	var cfg AppConfig

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		return nil
	}

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("加载配置失败: %w", err)
	}

	return nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}

	switch c.Storage.Driver {
	case STORAGE_MEMORY:
	case STORAGE_SQLITE:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Presence.HeartbeatInterval <= 0 || c.Presence.Timeout <= c.Presence.HeartbeatInterval {
		return errors.New("presence.timeout must be longer than presence.heartbeat_interval")
	}
	if c.Presence.SweepInterval <= 0 {
		return errors.New("presence.sweep_interval must be positive")
	}
	if c.Presence.HostGrace < 0 {
		return errors.New("presence.host_grace must not be negative")
	}

	if c.WS.RateLimit <= 0 || c.WS.RateBurst <= 0 {
		return errors.New("ws.rate_limit and ws.rate_burst must be positive")
	}

	return nil
}
