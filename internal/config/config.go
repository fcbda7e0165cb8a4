package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed view of configs/config.yml plus HARVEST_* env overrides.
type Config struct {
	Port    string        `mapstructure:"port"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Vision  VisionConfig  `mapstructure:"vision"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Auth    AuthConfig    `mapstructure:"auth"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type DBConfig struct {
	Engine string `mapstructure:"engine"` // sqlite | postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type FeedConfig struct {
	Source   string        `mapstructure:"source"` // simulator | websocket | rtdb
	URL      string        `mapstructure:"url"`
	Path     string        `mapstructure:"path"`
	AuthKey  string        `mapstructure:"auth_key"`
	Interval time.Duration `mapstructure:"interval"`
}

type CameraConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type VisionConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ScannerConfig struct {
	AutoInterval time.Duration `mapstructure:"auto_interval"`
	AutoStart    bool          `mapstructure:"auto_start"`
	Timezone     string        `mapstructure:"timezone"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type HTTPConfig struct {
	CORSOrigins []string `mapstructure:"cors_origins"`
	// WriteTimeout bounds a whole response; a manual scan waits on the
	// camera and the vision model, so keep it above both timeouts.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

const envPrefix = "HARVEST"

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.engine", "sqlite")
	v.SetDefault("db.path", "harvest.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("feed.source", "simulator")
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.path", "sensor_data")
	v.SetDefault("feed.auth_key", "")
	v.SetDefault("feed.interval", 3*time.Second)
	v.SetDefault("camera.url", "http://192.168.4.1/capture")
	v.SetDefault("camera.timeout", 15*time.Second)
	v.SetDefault("vision.base_url", "https://api.openai.com")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("vision.max_tokens", 400)
	v.SetDefault("vision.timeout", 30*time.Second)
	v.SetDefault("scanner.auto_interval", time.Hour)
	v.SetDefault("scanner.auto_start", false)
	v.SetDefault("scanner.timezone", "UTC")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.write_timeout", 90*time.Second)
}

// Load reads .env (when present), then the yaml config found in paths, then
// environment overrides. A missing config file is not an error.
func Load(paths ...string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown db.engine %q", c.DB.Engine)
	}
	if c.DB.Engine == "postgres" && c.DB.DSN == "" {
		return errors.New("db.dsn is required for the postgres engine")
	}
	switch c.Feed.Source {
	case "simulator":
	case "websocket", "rtdb":
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.url is required for the %s source", c.Feed.Source)
		}
	default:
		return fmt.Errorf("unknown feed.source %q", c.Feed.Source)
	}
	if c.Scanner.AutoInterval <= 0 {
		return errors.New("scanner.auto_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Scanner.Timezone); err != nil {
		return fmt.Errorf("scanner.timezone: %w", err)
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("auth.signing_key is required")
	}
	for _, o := range c.HTTP.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("http.cors_origins: %q must be \"*\" or start with http:// or https://", o)
		}
	}
	if c.HTTP.WriteTimeout < c.Camera.Timeout+c.Vision.Timeout {
		return errors.New("http.write_timeout must cover camera.timeout plus vision.timeout")
	}
	return nil
}

// Location returns the timezone used to derive scan dates.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scanner.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
