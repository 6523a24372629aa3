package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "zine-landing.yaml"

// Config holds the full application configuration.
type Config struct {
	App        AppConfig        `yaml:"app" mapstructure:"app"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
	Engagement EngagementConfig `yaml:"engagement" mapstructure:"engagement"`
	Waitlist   WaitlistConfig   `yaml:"waitlist" mapstructure:"waitlist"`
}

// AppConfig holds deployment-wide settings.
type AppConfig struct {
	Env string `yaml:"env" mapstructure:"env"`
}

// Development reports whether the diagnostic event log should be on.
func (a AppConfig) Development() bool {
	return a.Env == "development"
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	SecureCookies   bool          `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	TrustProxy      bool          `yaml:"trust_proxy" mapstructure:"trust_proxy"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TelemetryConfig configures where analytics events are sent. Sinks with
// an empty URL are not registered.
type TelemetryConfig struct {
	TrackURL   string  `yaml:"track_url" mapstructure:"track_url"`
	TagURL     string  `yaml:"tag_url" mapstructure:"tag_url"`
	Record     bool    `yaml:"record" mapstructure:"record"`
	QueueSize  int     `yaml:"queue_size" mapstructure:"queue_size"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// EngagementConfig tunes page-view observation.
type EngagementConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ReapInterval  time.Duration `yaml:"reap_interval" mapstructure:"reap_interval"`
}

// WaitlistConfig rate limits waitlist submissions per client address.
type WaitlistConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// Load reads configuration from file and environment. An empty path looks
// for FileName in the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ZINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	durations := map[string]time.Duration{
		"server.shutdown_timeout":   c.Server.ShutdownTimeout,
		"engagement.check_interval": c.Engagement.CheckInterval,
		"engagement.idle_timeout":   c.Engagement.IdleTimeout,
		"engagement.reap_interval":  c.Engagement.ReapInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return eris.Errorf("config: %s must be positive, got %s", key, d)
		}
	}
	if c.Waitlist.RatePerMinute <= 0 || c.Waitlist.Burst <= 0 {
		return eris.New("config: waitlist.rate_per_minute and waitlist.burst must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("app.env", d.App.Env)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.secure_cookies", d.Server.SecureCookies)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("telemetry.track_url", d.Telemetry.TrackURL)
	v.SetDefault("telemetry.tag_url", d.Telemetry.TagURL)
	v.SetDefault("telemetry.record", d.Telemetry.Record)
	v.SetDefault("telemetry.queue_size", d.Telemetry.QueueSize)
	v.SetDefault("telemetry.rate_per_sec", d.Telemetry.RatePerSec)
	v.SetDefault("engagement.check_interval", d.Engagement.CheckInterval)
	v.SetDefault("engagement.idle_timeout", d.Engagement.IdleTimeout)
	v.SetDefault("engagement.reap_interval", d.Engagement.ReapInterval)
	v.SetDefault("waitlist.rate_per_minute", d.Waitlist.RatePerMinute)
	v.SetDefault("waitlist.burst", d.Waitlist.Burst)
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		App: AppConfig{Env: "production"},
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Path: "./zine-landing.db"},
		Log:   LogConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{
			Record:     true,
			QueueSize:  256,
			RatePerSec: 20,
		},
		Engagement: EngagementConfig{
			CheckInterval: 5 * time.Second,
			IdleTimeout:   30 * time.Minute,
			ReapInterval:  time.Minute,
		},
		Waitlist: WaitlistConfig{RatePerMinute: 6, Burst: 3},
	}
}

// Write saves cfg as YAML at path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
