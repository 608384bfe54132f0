// Package config loads the keygate server configuration from a TOML file and
// overlays credentials and deployment settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Version is the supported configuration file format version.
const Version = "0.1.0"

const (
	DriverSQLite     = "sqlite"
	DriverPostgreSQL = "postgresql"

	// ServerlessDBPath is the only writable location on serverless hosts. Data
	// there does not survive a cold start.
	ServerlessDBPath = "/tmp/keygate.db"
)

// DBConfig selects and configures the key store backend.
type DBConfig struct {
	Driver           string `toml:"driver" validate:"oneof=sqlite postgresql"`
	Path             string `toml:"path" validate:"required_if=Driver sqlite"`
	Host             string `toml:"host" validate:"required_if=Driver postgresql"`
	Port             int    `toml:"port" validate:"required_if=Driver postgresql,gte=0"`
	DBName           string `toml:"dbname" validate:"required_if=Driver postgresql"`
	User             string `toml:"user" validate:"required_if=Driver postgresql"`
	Password         string `toml:"password"`
	SSLMode          string `toml:"sslmode"`
	StatementTimeout string `toml:"statement_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ProviderConfig describes one upstream chat completion provider. The
// credential is read from the environment variable named by APIKeyEnv.
type ProviderConfig struct {
	Name      string `toml:"name" validate:"required"`
	BaseURL   string `toml:"base_url" validate:"required,url"`
	APIKeyEnv string `toml:"api_key_env" validate:"required"`
	// Model is the forced model for the primary provider and the default model
	// for the secondary one.
	Model   string `toml:"model" validate:"required"`
	Referer string `toml:"referer"`
	APIKey  string `toml:"-"`
}

// GatewayConfig configures outbound completion calls.
type GatewayConfig struct {
	Timeout            string         `toml:"timeout"`
	DefaultTemperature *float64       `toml:"default_temperature"`
	ExcerptLimit       int            `toml:"excerpt_limit" validate:"gte=0"`
	Primary            ProviderConfig `toml:"primary"`
	Secondary          ProviderConfig `toml:"secondary"`
}

// GetTimeout returns the outbound call timeout.
func (g *GatewayConfig) GetTimeout() time.Duration {
	d, err := ParseDuration(g.Timeout)
	if err != nil {
		return DefaultGatewayTimeout
	}
	return d
}

// AdminConfig names the environment variable holding the shared admin credential.
type AdminConfig struct {
	PasswordEnv string `toml:"password_env"`
	Password    string `toml:"-"`
}

// ConfigParam holds all configuration parameters for the keygate server.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	ServerPort         string   `toml:"server_port" validate:"required,numeric"`
	HandleCORS         bool     `toml:"handle_cors"`
	AllowedOrigins     []string `toml:"allowed_origins"`
	MaxRequestBodySize int64    `toml:"max_request_body_size" validate:"gte=0"`
	RequestTimeout     string   `toml:"request_timeout"`
	LogLevel           string   `toml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	TraceRoutes        bool     `toml:"trace_routes"`

	DB      DBConfig      `toml:"db"`
	Admin   AdminConfig   `toml:"admin"`
	Gateway GatewayConfig `toml:"gateway"`
}

// GetRequestTimeout returns the per-request handling timeout.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	d, err := ParseDuration(c.RequestTimeout)
	if err != nil {
		return DefaultRequestTimeout
	}
	return d
}

const (
	DefaultGatewayTimeout     = 25 * time.Second
	DefaultRequestTimeout     = 30 * time.Second
	DefaultTemperature        = 0.9
	DefaultExcerptLimit       = 100
	DefaultMaxRequestBodySize = 1 << 20
)

var cfg *ConfigParam

// Config returns the loaded configuration.
func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the loaded configuration.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// ParseDuration parses "<number><unit>" with unit one of s, m, h, d or y.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}

	switch unit {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

func applyDefaults(c *ConfigParam) {
	if c.DB.Driver == "" {
		c.DB.Driver = DriverSQLite
	}
	if c.DB.Driver == DriverSQLite && c.DB.Path == "" {
		c.DB.Path = "keygate.db"
	}
	if c.DB.Driver == DriverPostgreSQL && c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.DB.StatementTimeout == "" {
		c.DB.StatementTimeout = "5s"
	}
	if c.MaxRequestBodySize == 0 {
		c.MaxRequestBodySize = DefaultMaxRequestBodySize
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "30s"
	}
	if c.Admin.PasswordEnv == "" {
		c.Admin.PasswordEnv = "ADMIN_PASSWORD"
	}
	if c.Gateway.Timeout == "" {
		c.Gateway.Timeout = "25s"
	}
	if c.Gateway.DefaultTemperature == nil {
		t := DefaultTemperature
		c.Gateway.DefaultTemperature = &t
	}
	if c.Gateway.ExcerptLimit == 0 {
		c.Gateway.ExcerptLimit = DefaultExcerptLimit
	}
	p := &c.Gateway.Primary
	if p.Name == "" {
		p.Name = "Groq"
	}
	if p.BaseURL == "" {
		p.BaseURL = "https://api.groq.com/openai/v1/"
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = "GROQ_API_KEY"
	}
	if p.Model == "" {
		p.Model = "llama-3.3-70b-versatile"
	}
	s := &c.Gateway.Secondary
	if s.Name == "" {
		s.Name = "OpenRouter"
	}
	if s.BaseURL == "" {
		s.BaseURL = "https://openrouter.ai/api/v1/"
	}
	if s.APIKeyEnv == "" {
		s.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if s.Model == "" {
		s.Model = "nousresearch/hermes-3-llama-3.1-405b:free"
	}
}

// applyEnvironment pulls credentials and deployment overrides from the
// process environment.
func applyEnvironment(c *ConfigParam) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.ServerPort = port
	}
	if c.DB.Driver == DriverSQLite && isServerless() {
		c.DB.Path = ServerlessDBPath
	}
	c.Admin.Password = os.Getenv(c.Admin.PasswordEnv)
	c.Gateway.Primary.APIKey = strings.TrimSpace(os.Getenv(c.Gateway.Primary.APIKeyEnv))
	c.Gateway.Secondary.APIKey = strings.TrimSpace(os.Getenv(c.Gateway.Secondary.APIKeyEnv))
}

func isServerless() bool {
	return os.Getenv("VERCEL") != "" || os.Getenv("VERCEL_ENV") != ""
}

var validate = validator.New()

// ValidateConfig checks that all required values are present and well formed.
func ValidateConfig(c *ConfigParam) error {
	if c.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, d := range map[string]string{
		"request_timeout":      c.RequestTimeout,
		"gateway.timeout":      c.Gateway.Timeout,
		"db.statement_timeout": c.DB.StatementTimeout,
	} {
		if _, err := ParseDuration(d); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	return nil
}

// ParseConfig decodes, completes and validates a configuration document.
func ParseConfig(content string) (*ConfigParam, error) {
	c := &ConfigParam{}
	if _, err := toml.Decode(content, c); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	applyDefaults(c)
	applyEnvironment(c)
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}

// LoadConfig loads a .env file from the working directory if present (it never
// overrides variables already set), then reads and validates filename.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	_ = godotenv.Load()

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	c, err := ParseConfig(string(content))
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// TestInit loads keygatesrv.conf from the project root with the key store
// pointed at a fresh SQLite file under dir.
func TestInit(dir string) *ConfigParam {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	content, err := os.ReadFile(filepath.Join(projectRoot, "keygatesrv.conf"))
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
	c, err := ParseConfig(string(content))
	if err != nil {
		panic(err)
	}
	c.DB.Driver = DriverSQLite
	c.DB.Path = filepath.Join(dir, "keygate.db")
	cfg = c
	return c
}
