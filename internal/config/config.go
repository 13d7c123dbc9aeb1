package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "TASKBOT"
	EnvConfigPath = "TASKBOT_CONFIG"
)

const (
	RepositorySQLite   = "sqlite"
	RepositoryPostgres = "postgres"
	RepositoryInMemory = "inmemory"

	CooldownMemory = "memory"
	CooldownRedis  = "redis"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Bot        BotConfig        `mapstructure:"bot"`
	Cooldown   CooldownConfig   `mapstructure:"cooldown"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimitRPM    int           `mapstructure:"rate_limit_rpm"`
}

type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"`
}

type BotConfig struct {
	Prefix               string `mapstructure:"prefix"`
	PageSize             int    `mapstructure:"page_size"`
	MaxDescriptionLength int    `mapstructure:"max_description_length"`
}

type CooldownConfig struct {
	Window        time.Duration `mapstructure:"window"`
	Backend       string        `mapstructure:"backend"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit_rpm", 0)

	v.SetDefault("database.path", "tasks.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 1)
	v.SetDefault("database.idle_timeout", 5*time.Minute)

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")

	v.SetDefault("repository.type", RepositorySQLite)

	v.SetDefault("bot.prefix", "!")
	v.SetDefault("bot.page_size", 10)
	v.SetDefault("bot.max_description_length", 500)

	v.SetDefault("cooldown.window", 5*time.Second)
	v.SetDefault("cooldown.backend", CooldownMemory)
	v.SetDefault("cooldown.prune_interval", time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "taskbot:cooldown:")
}

// Load reads config.yml (or the file named by path or TASKBOT_CONFIG) and
// applies TASKBOT_* environment overrides on top of the defaults. A missing
// default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositorySQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for sqlite")
		}
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for postgres")
		}
	case RepositoryInMemory:
	default:
		return fmt.Errorf("config: unknown repository.type %q", c.Repository.Type)
	}

	switch c.Cooldown.Backend {
	case CooldownMemory:
	case CooldownRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis cooldown backend")
		}
	default:
		return fmt.Errorf("config: unknown cooldown.backend %q", c.Cooldown.Backend)
	}

	if c.Cooldown.Window <= 0 {
		return errors.New("config: cooldown.window must be positive")
	}
	if c.Bot.PageSize <= 0 {
		return errors.New("config: bot.page_size must be positive")
	}
	if c.Bot.MaxDescriptionLength <= 0 {
		return errors.New("config: bot.max_description_length must be positive")
	}
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return errors.New("config: bot.prefix must not be empty")
	}
	if c.Database.MaxConnections <= 0 {
		return errors.New("config: database.max_connections must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("config: server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
