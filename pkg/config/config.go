package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys,
// e.g. KITINFO_API_TOKEN for api.token.
const EnvPrefix = "KITINFO"

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("no Typekit API token configured (set api.token or KITINFO_API_TOKEN)")

// Config is the complete kitinfo configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// File is the configuration file that was read, empty if none.
	File string `mapstructure:"-"`
}

// APIConfig configures the Typekit API client.
type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	Token    string        `mapstructure:"token" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RetryMax int           `mapstructure:"retry_max" validate:"gte=0,lte=10"`
}

// SessionConfig configures the interactive session.
type SessionConfig struct {
	FetchConcurrency int    `mapstructure:"fetch_concurrency" validate:"gte=1,lte=32"`
	OutputFormat     string `mapstructure:"output_format" validate:"oneof=json yaml"`
	NoColor          bool   `mapstructure:"no_color"`
}

// JournalConfig configures the session journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// TelemetryConfig configures logging, metrics and tracing.
type TelemetryConfig struct {
	LogLevel  string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string        `mapstructure:"log_format" validate:"oneof=console json"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	Tracing   TracingConfig `mapstructure:"tracing"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// ListenAddress serves /metrics while a session runs, e.g. "127.0.0.1:9464".
	ListenAddress string `mapstructure:"listen_address" validate:"omitempty,hostname_port"`

	// Textfile writes the metrics in text format when the session ends, for the
	// node_exporter textfile collector.
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter" validate:"oneof=stdout otlp"`
	Endpoint     string  `mapstructure:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  "https://typekit.com/api/v1/json/",
			Timeout:  30 * time.Second,
			RetryMax: 2,
		},
		Session: SessionConfig{
			FetchConcurrency: 4,
			OutputFormat:     "json",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    defaultJournalPath(),
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "warn",
			LogFormat: "console",
			Tracing: TracingConfig{
				Exporter:     "stdout",
				SamplingRate: 1.0,
			},
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fieldKey(fe) == "api.token" {
				return ErrMissingToken
			}
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Exporter == "otlp" && c.Telemetry.Tracing.Endpoint == "" {
		return errors.New("invalid configuration: telemetry.tracing.endpoint is required for the otlp exporter")
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report keys as they appear in the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldKey returns the dotted configuration key of a failed field.
func fieldKey(fe validator.FieldError) string {
	key := fe.Namespace()
	// Drop the root type name.
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}
	return key
}

func describe(fe validator.FieldError) string {
	key := fieldKey(fe)
	switch fe.Tag() {
	case "required", "required_if":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fmt.Sprint(fe.Value()))
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", key, fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Loader reads configuration from defaults, a YAML file, the environment and
// command line flags, in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment binding in place.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.retry_max", d.API.RetryMax)
	v.SetDefault("session.fetch_concurrency", d.Session.FetchConcurrency)
	v.SetDefault("session.output_format", d.Session.OutputFormat)
	v.SetDefault("session.no_color", d.Session.NoColor)
	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("telemetry.log_level", d.Telemetry.LogLevel)
	v.SetDefault("telemetry.log_format", d.Telemetry.LogFormat)
	v.SetDefault("telemetry.metrics.enabled", d.Telemetry.Metrics.Enabled)
	v.SetDefault("telemetry.metrics.listen_address", d.Telemetry.Metrics.ListenAddress)
	v.SetDefault("telemetry.metrics.textfile", d.Telemetry.Metrics.Textfile)
	v.SetDefault("telemetry.tracing.enabled", d.Telemetry.Tracing.Enabled)
	v.SetDefault("telemetry.tracing.exporter", d.Telemetry.Tracing.Exporter)
	v.SetDefault("telemetry.tracing.endpoint", d.Telemetry.Tracing.Endpoint)
	v.SetDefault("telemetry.tracing.sampling_rate", d.Telemetry.Tracing.SamplingRate)

	return &Loader{v: v}
}

// BindFlag makes a command line flag override the configuration key.
// Only flags explicitly set on the command line take effect.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind to %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the configuration. An explicit path (or $KITINFO_CONFIG) must
// exist; otherwise the first file found in SearchPaths is used, and having none
// is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	strict := true
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		strict = false
		path = findConfigFile(SearchPaths())
	}

	if path != "" {
		l.v.SetConfigFile(ExpandPath(path))
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if strict || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.File = l.v.ConfigFileUsed()
	cfg.Journal.Path = ExpandPath(cfg.Journal.Path)
	cfg.Telemetry.Metrics.Textfile = ExpandPath(cfg.Telemetry.Metrics.Textfile)

	return cfg, nil
}

// Load reads the configuration with a fresh Loader.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// SearchPaths returns the configuration files tried when none is named.
func SearchPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "kitinfo", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "kitinfo", "config.yaml"))
	}
	return append(paths, "kitinfo.yaml")
}

func findConfigFile(candidates []string) string {
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func defaultJournalPath() string {
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "kitinfo", "journal.db")
	}
	return filepath.Join("~", ".local", "share", "kitinfo", "journal.db")
}
