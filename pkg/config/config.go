package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/retry"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultBaseURL = "https://api.subconscious.ai"
	DefaultName    = "subconscious-ai"
	DefaultVersion = "1.0.0"
	DefaultAddr    = ":8080"
)

// DefaultOrigins are the browser origins allowed by default.
var DefaultOrigins = []string{
	"https://app.subconscious.ai",
	"https://holodeck.subconscious.ai",
	"https://ghostshell-runi.vercel.app",
}

// DefaultOriginRegex matches preview deployments and local development.
const DefaultOriginRegex = `https://.*\.vercel\.app|http://localhost:\d+|http://127\.0\.0\.1:\d+`

// Config is the top-level ghostshell configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Retry  RetryConfig  `yaml:"retry"`
	Server ServerConfig `yaml:"server"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// APIConfig describes the backend.
type APIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Token          string   `yaml:"token,omitempty"` //nolint:gosec // configuration field, not a hardcoded secret
	RequestTimeout Duration `yaml:"request_timeout"` // Per attempt.
	ReadTimeout    Duration `yaml:"read_timeout"`    // Per attempt, GET calls.
	CallTimeout    Duration `yaml:"call_timeout"`    // Whole tool call including retries (0 = none).
}

// RetryConfig controls retries of transient backend failures.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"` // 0 disables retries.
	BaseDelay  Duration `yaml:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
}

// ServerConfig describes the MCP server identity.
type ServerConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions,omitempty"`
}

// HTTPConfig holds settings of the hosted HTTP front-end.
type HTTPConfig struct {
	Addr string     `yaml:"addr"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig lists the browser origins allowed to call the HTTP front-end.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	OriginRegex    string   `yaml:"origin_regex,omitempty"`
	AllowAll       bool     `yaml:"allow_all,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			RequestTimeout: Duration(300 * time.Second),
			ReadTimeout:    Duration(60 * time.Second),
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  Duration(time.Second),
			MaxDelay:   Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Name:    DefaultName,
			Version: DefaultVersion,
		},
		HTTP: HTTPConfig{
			Addr: DefaultAddr,
			CORS: CORSConfig{
				AllowedOrigins: append([]string(nil), DefaultOrigins...),
				OriginRegex:    DefaultOriginRegex,
			},
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (when path
// is non-empty) and then with environment overrides. Environment variables
// referenced as ${VAR} or $VAR in the YAML are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
		if err != nil {
			return Config{}, fmt.Errorf("config: load: %w", err)
		}

		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

// LoadOptional is Load that treats a missing file as absent.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return cfg, err
}

// ApplyEnv overlays the environment variables understood by ghostshell:
// API_BASE_URL, SUBCONSCIOUS_ACCESS_TOKEN (or legacy AUTH0_JWT_TOKEN),
// CORS_ALLOWED_ORIGINS, CORS_ALLOW_ALL and PORT. An explicit origin list
// takes precedence over CORS_ALLOW_ALL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	if v := get("API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}

	for _, name := range []string{"SUBCONSCIOUS_ACCESS_TOKEN", "AUTH0_JWT_TOKEN"} {
		if v := get(name); v != "" {
			c.API.Token = v
			break
		}
	}

	switch origins := get("CORS_ALLOWED_ORIGINS"); {
	case origins != "":
		var list []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		c.HTTP.CORS = CORSConfig{AllowedOrigins: list}
	case isTrue(get("CORS_ALLOW_ALL")):
		c.HTTP.CORS = CORSConfig{AllowAll: true}
	}

	if v := get("PORT"); v != "" {
		c.HTTP.Addr = ":" + v
	}
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.RequestTimeout < 0 || c.API.ReadTimeout < 0 || c.API.CallTimeout < 0 {
		return errors.New("config: api timeouts must not be negative")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("config: retry delays must not be negative")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("config: retry.base_delay %s exceeds retry.max_delay %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	if c.Server.Name == "" {
		return errors.New("config: server.name is required")
	}

	if c.HTTP.CORS.OriginRegex != "" {
		if _, err := regexp.Compile(c.HTTP.CORS.OriginRegex); err != nil {
			return fmt.Errorf("config: http.cors.origin_regex: %w", err)
		}
	}

	return nil
}

// RetryOpts converts the retry section into policy options.
func (c Config) RetryOpts() retry.Opts {
	n := c.Retry.MaxRetries
	if n == 0 {
		n = -1 // retry.New treats zero as "use the default".
	}
	return retry.Opts{
		MaxRetries: n,
		BaseDelay:  time.Duration(c.Retry.BaseDelay),
		MaxDelay:   time.Duration(c.Retry.MaxDelay),
	}
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
