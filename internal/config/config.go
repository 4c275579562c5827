// Package config loads settings for the server and the console from a YAML
// file, an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yml"

// Duration accepts Go duration strings ("5s", "1m30s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port           int     `yaml:"port"`
	CallLimit      int     `yaml:"call_limit"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	User            string   `yaml:"user"`
	Password        string   `yaml:"password"`
	Name            string   `yaml:"name"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig is optional. Without an address the login lockout is kept in
// process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	MaxAttempts   int      `yaml:"max_attempts"`
	LockoutWindow Duration `yaml:"lockout_window"`
	BcryptCost    int      `yaml:"bcrypt_cost"`
	AdminUsername string   `yaml:"admin_username"`
	AdminPassword string   `yaml:"admin_password"`
	AdminFullName string   `yaml:"admin_full_name"`
}

type RoutingConfig struct {
	DispatchInterval Duration `yaml:"dispatch_interval"`
}

// ConsoleConfig drives the operator console. Endpoint URLs left empty are
// derived from BaseURL.
type ConsoleConfig struct {
	BaseURL        string   `yaml:"base_url"`
	AuthURL        string   `yaml:"auth_url"`
	UsersURL       string   `yaml:"users_url"`
	CallsURL       string   `yaml:"calls_url"`
	PollInterval   Duration `yaml:"poll_interval"`
	RequestTimeout Duration `yaml:"request_timeout"`
	Language       string   `yaml:"language"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Routing  RoutingConfig  `yaml:"routing"`
	Console  ConsoleConfig  `yaml:"console"`
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8001,
			CallLimit:      100,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			Host:            "localhost",
			Port:            3306,
			User:            "root",
			Name:            "call_center",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Auth: AuthConfig{
			MaxAttempts:   5,
			LockoutWindow: Duration(15 * time.Minute),
			BcryptCost:    10,
			AdminUsername: "admin",
			AdminFullName: "Администратор",
		},
		Routing: RoutingConfig{
			DispatchInterval: Duration(30 * time.Second),
		},
		Console: ConsoleConfig{
			BaseURL:      "http://localhost:8001",
			PollInterval: Duration(5 * time.Second),
			Language:     "ru",
		},
	}
}

// Load reads path on top of the defaults, then .env, then the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("could not parse config yaml: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("DATABASE_DRIVER", &c.Database.Driver)
	setString("DATABASE_URL", &c.Database.DSN)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("ADMIN_USERNAME", &c.Auth.AdminUsername)
	setString("ADMIN_PASSWORD", &c.Auth.AdminPassword)
	setString("CONSOLE_BASE_URL", &c.Console.BaseURL)
	setString("CONSOLE_LANG", &c.Console.Language)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		c.Console.PollInterval = Duration(d)
	}
	return nil
}

// Validate checks the settings both binaries depend on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Console.PollInterval.Std() <= 0 {
		return errors.New("console poll_interval must be positive")
	}
	if c.Auth.MaxAttempts < 0 {
		return errors.New("auth max_attempts must not be negative")
	}
	if _, err := url.Parse(c.Console.BaseURL); err != nil {
		return fmt.Errorf("invalid console base_url: %w", err)
	}
	return nil
}

// DataSourceName returns DSN or builds one for the driver from the parts.
func (d DatabaseConfig) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	case "sqlite":
		return d.Name + ".db"
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
}

// EndpointURLs returns the auth, users and calls URLs.
func (c ConsoleConfig) EndpointURLs() (auth, users, calls string) {
	base := strings.TrimRight(c.BaseURL, "/")
	pick := func(explicit, path string) string {
		if explicit != "" {
			return explicit
		}
		return base + path
	}
	return pick(c.AuthURL, "/api/auth"), pick(c.UsersURL, "/api/users"), pick(c.CallsURL, "/api/calls")
}
