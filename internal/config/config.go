// Package config holds the application's root configuration, loaded through
// Viper from file, environment, and flags.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Judge   JudgeConfig   `mapstructure:"judge"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
}

// ColorConfig defines the console color per log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug"`
	Info  string `mapstructure:"info"`
	Warn  string `mapstructure:"warn"`
	Error string `mapstructure:"error"`
	Fatal string `mapstructure:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level"`
	Format      string      `mapstructure:"format"`
	AddSource   bool        `mapstructure:"add_source"`
	ServiceName string      `mapstructure:"service_name"`
	LogFile     string      `mapstructure:"log_file"`
	MaxSize     int         `mapstructure:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups"`
	MaxAge      int         `mapstructure:"max_age"`
	Compress    bool        `mapstructure:"compress"`
	Colors      ColorConfig `mapstructure:"colors"`
}

// BrowserConfig holds settings for the headless browser sessions.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent"`
	Args            []string `mapstructure:"args"`
	// UserDataDir points at a persistent Chrome profile carrying the judge
	// login cookies. An empty value uses a throwaway profile, which will
	// always hit the login redirect.
	UserDataDir string `mapstructure:"user_data_dir"`
}

// JudgeConfig holds settings for talking to the judge site.
type JudgeConfig struct {
	// Username scopes status lookups to the submitting account.
	Username string `mapstructure:"username"`
	// CodeOpen is the default source visibility for submissions.
	CodeOpen string `mapstructure:"code_open"`
	// PageLoadTimeout bounds how long a submit page may take to load.
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
}

// ProxyConfig holds settings for the rate-limited execution proxy.
type ProxyConfig struct {
	Listen string `mapstructure:"listen"`
	// UpstreamURL is the downstream execution API endpoint.
	UpstreamURL string `mapstructure:"upstream_url"`
	// APIKey, when set, is attached as the Authorization header on
	// forwarded requests. Usually sourced from PISTON_API_KEY.
	APIKey string `mapstructure:"api_key"`
	// AllowedOriginPrefix gates the Origin header of incoming requests.
	AllowedOriginPrefix string          `mapstructure:"allowed_origin_prefix"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
	Redis               RedisConfig     `mapstructure:"redis"`
}

// RateLimitConfig parameterizes the fixed-window limiter.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RedisConfig selects the shared rate-limit store for multi-instance
// deployments. Disabled means the in-memory store.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SetDefaults registers every default on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "boj-editor")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)

	v.SetDefault("judge.code_open", "close")
	v.SetDefault("judge.page_load_timeout", 15*time.Second)

	v.SetDefault("proxy.listen", ":8787")
	v.SetDefault("proxy.upstream_url", "https://emkc.org/api/v2/piston/execute")
	v.SetDefault("proxy.allowed_origin_prefix", "chrome-extension://")
	v.SetDefault("proxy.rate_limit.requests", 10)
	v.SetDefault("proxy.rate_limit.window", 60*time.Second)
	v.SetDefault("proxy.redis.enabled", false)
	v.SetDefault("proxy.redis.addr", "localhost:6379")
}

// Load unmarshals and validates the configuration from the given viper
// instance and installs it as the process-wide singleton.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Set(&cfg)
	return &cfg, nil
}

// Validate checks for values the rest of the system cannot tolerate.
func (c *Config) Validate() error {
	if c.Judge.PageLoadTimeout <= 0 {
		return fmt.Errorf("judge.page_load_timeout must be positive, got %v", c.Judge.PageLoadTimeout)
	}
	switch c.Judge.CodeOpen {
	case "", "open", "close", "onlyaccepted":
	default:
		return fmt.Errorf("judge.code_open must be one of open, close, onlyaccepted; got %q", c.Judge.CodeOpen)
	}
	if c.Proxy.RateLimit.Requests <= 0 {
		return fmt.Errorf("proxy.rate_limit.requests must be positive, got %d", c.Proxy.RateLimit.Requests)
	}
	if c.Proxy.RateLimit.Window <= 0 {
		return fmt.Errorf("proxy.rate_limit.window must be positive, got %v", c.Proxy.RateLimit.Window)
	}
	if !strings.Contains(c.Proxy.UpstreamURL, "://") {
		return fmt.Errorf("proxy.upstream_url must be an absolute URL, got %q", c.Proxy.UpstreamURL)
	}
	return nil
}

// Set stores the configuration globally.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("configuration not initialized; call config.Load in the root command")
	}
	return instance
}

// NewDefaultConfig returns a Config populated purely from defaults. Tests
// use this to avoid touching the singleton.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config failed to unmarshal: %v", err))
	}
	return &cfg
}
