// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/operations"
)

// EnvPrefix prefixes every environment override, e.g. MY99EXCH_SERVER_ADDR.
const EnvPrefix = "MY99EXCH"

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig        `mapstructure:"logger" yaml:"logger"`
	Server     ServerConfig        `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Browser    BrowserConfig       `mapstructure:"browser" yaml:"browser"`
	Timeouts   operations.Timeouts `mapstructure:"timeouts" yaml:"timeouts"`
	Session    SessionConfig       `mapstructure:"session" yaml:"session"`
	Operations OperationsConfig    `mapstructure:"operations" yaml:"operations"`
	Classifier ClassifierConfig    `mapstructure:"classifier" yaml:"classifier"`
	Sites      []SiteConfig        `mapstructure:"sites" yaml:"sites"`
	Profiles   []ProfileConfig     `mapstructure:"profiles" yaml:"profiles"`
}

// LoggerConfig controls the console and rotated file outputs.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP boundary. WriteTimeout must outlast the
// longest script, gate wait included.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Database drivers for the audit log.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// DatabaseConfig selects the audit log backend.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	URL      string `mapstructure:"url" yaml:"url"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// BrowserConfig configures the browser that hosts every site session.
type BrowserConfig struct {
	Headless        bool              `mapstructure:"headless" yaml:"headless"`
	ExecutablePath  string            `mapstructure:"executable_path" yaml:"executable_path"`
	Args            []string          `mapstructure:"args" yaml:"args"`
	ViewportWidth   int               `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int               `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	ExtraHeaders    map[string]string `mapstructure:"extra_headers" yaml:"extra_headers"`
	NavigationRate  float64           `mapstructure:"navigation_rate" yaml:"navigation_rate"`
	NavigationBurst int               `mapstructure:"navigation_burst" yaml:"navigation_burst"`
	Debug           bool              `mapstructure:"debug" yaml:"debug"`
}

// SessionConfig tunes the session registry and admission gate.
type SessionConfig struct {
	// LoginMarker in a session's current location means it lost authentication.
	LoginMarker string `mapstructure:"login_marker" yaml:"login_marker"`
	// AdmissionTimeout bounds how long a request waits for a busy site; zero waits as long as the caller does.
	AdmissionTimeout time.Duration `mapstructure:"admission_timeout" yaml:"admission_timeout"`
}

// OperationsConfig holds business defaults.
type OperationsConfig struct {
	DefaultSecret string `mapstructure:"default_secret" yaml:"default_secret"`
	AccountPrefix string `mapstructure:"account_prefix" yaml:"account_prefix"`
}

// ClassifierConfig appends failure phrases to the built-in ones.
type ClassifierConfig struct {
	Common  []string            `mapstructure:"common" yaml:"common"`
	Phrases map[string][]string `mapstructure:"phrases" yaml:"phrases"`
}

// SiteConfig is a site to log in at startup.
type SiteConfig struct {
	URL                 string `mapstructure:"url" yaml:"url"`
	schemas.Credentials `mapstructure:",squash" yaml:",inline"`
}

// ProfileConfig overrides the default Locator set for the sites of Host.
// Unset locators keep their default.
type ProfileConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	operations.Profile `mapstructure:",squash" yaml:",inline"`
}

// ProfileTable builds the per-host Locator table.
func (c *Config) ProfileTable() *operations.Profiles {
	overrides := make(map[string]operations.Profile, len(c.Profiles))
	for _, p := range c.Profiles {
		overrides[p.Host] = p.Profile
	}
	return operations.NewProfiles(operations.DefaultProfile(), overrides)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "my99exch")
	v.SetDefault("logger.log_file", "logs/my99exch.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://fgpunt.com", "https://fgpunt.com"})

	// -- Database --
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "file:my99exch.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_conns", 4)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{"disable-setuid-sandbox", "no-sandbox", "no-zygote", "disable-gpu"})
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.navigation_rate", 2.0)
	v.SetDefault("browser.navigation_burst", 4)
	v.SetDefault("browser.debug", false)

	// -- Timeouts --
	t := operations.DefaultTimeouts()
	v.SetDefault("timeouts.navigation", t.Navigation)
	v.SetDefault("timeouts.wait", t.Wait)
	v.SetDefault("timeouts.action", t.Action)
	v.SetDefault("timeouts.exact_match", t.ExactMatch)
	v.SetDefault("timeouts.credentials_probe", t.CredentialsProbe)
	v.SetDefault("timeouts.post_login", t.PostLogin)

	// -- Session --
	v.SetDefault("session.login_marker", "login")
	v.SetDefault("session.admission_timeout", "0s")

	// -- Operations --
	v.SetDefault("operations.default_secret", "Abcd1234")
	v.SetDefault("operations.account_prefix", "pl")
}

// NewDefaultConfig returns the configuration made of defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are usually supplied through the environment.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("operations.default_secret", EnvPrefix+"_DEFAULT_SECRET", "DEFAULT_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if c.Session.AdmissionTimeout < 0 {
		return fmt.Errorf("session.admission_timeout must not be negative")
	}
	switch c.Database.Driver {
	case DriverNone:
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, none; got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Operations.DefaultSecret) == "" {
		return fmt.Errorf("operations.default_secret is required")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.NavigationRate < 0 {
		return fmt.Errorf("browser.navigation_rate must not be negative")
	}
	for op := range c.Classifier.Phrases {
		if _, err := schemas.ParseOperation(op); err != nil {
			return fmt.Errorf("classifier.phrases: %w", err)
		}
	}
	for i, p := range c.Profiles {
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("profiles[%d] needs a host", i)
		}
	}
	for i, s := range c.Sites {
		if s.URL == "" || s.Username == "" || s.Secret == "" {
			return fmt.Errorf("sites[%d] needs url, username and password", i)
		}
	}
	return nil
}
