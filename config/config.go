package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the election analytics service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Storage   StorageConfig   `mapstructure:"storage"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

func (g GeneralConfig) Validate() error {
	if strings.TrimSpace(g.Listen) == "" {
		return fmt.Errorf("general.listen required")
	}
	if _, _, err := net.SplitHostPort(g.Listen); err != nil {
		return fmt.Errorf("general.listen: %w", err)
	}
	return nil
}

// StorageConfig groups the backing stores.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	// ReadOnlyTx runs generated statements inside a READ ONLY transaction.
	ReadOnlyTx bool `mapstructure:"read_only_tx"`
}

func (p PostgresConfig) Validate() error {
	if p.MaxOpenConns < 0 {
		return fmt.Errorf("storage.postgres.max_open_conns cannot be negative")
	}
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, preferring URL when set.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.Timeout > 0 {
		u.RawQuery += fmt.Sprintf("&connect_timeout=%d", int(p.Timeout.Seconds()))
	}
	return u.String()
}

// RedisConfig contains Redis connection settings. An empty host disables caching.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a redis host is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.TTL < 0 {
		return fmt.Errorf("storage.redis.ttl cannot be negative")
	}
	return nil
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini or openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// Normalize lower-cases the provider name and fills unset tuning values.
func (l LLMConfig) Normalize() LLMConfig {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = "gemini"
	}
	if l.Timeout <= 0 {
		l.Timeout = 30 * time.Second
	}
	if l.Backoff <= 0 {
		l.Backoff = 500 * time.Millisecond
	}
	return l
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider %q not supported (gemini, openai)", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	return nil
}

// ValidatorConfig controls generated statement validation.
type ValidatorConfig struct {
	GrammarCheck bool   `mapstructure:"grammar_check"`
	Table        string `mapstructure:"table"`
}

func (v ValidatorConfig) Validate() error {
	if strings.TrimSpace(v.Table) == "" {
		return fmt.Errorf("validator.table required")
	}
	return nil
}

// RefreshConfig schedules value index and filter cache rebuilds.
type RefreshConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

func (r RefreshConfig) Validate() error {
	if r.Enabled && strings.TrimSpace(r.Schedule) == "" {
		return fmt.Errorf("refresh.schedule required when refresh is enabled")
	}
	return nil
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Normalize trims and deduplicates origins, defaulting to "*".
func (c CORSConfig) Normalize() CORSConfig {
	seen := make(map[string]struct{}, len(c.AllowOrigins))
	var out []string
	for _, o := range c.AllowOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	c.AllowOrigins = out
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":3000")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.read_only_tx", true)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.ttl", 10*time.Minute)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.backoff", 500*time.Millisecond)
	v.SetDefault("validator.grammar_check", true)
	v.SetDefault("validator.table", "election_loksabha_data")
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.schedule", "@hourly")
	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("general.debug", false)
}

// bindEnv registers keys without defaults so AutomaticEnv can resolve them on Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"storage.postgres.host", "storage.postgres.user",
		"storage.postgres.password", "storage.postgres.dbname", "storage.postgres.timeout",
		"storage.redis.host", "storage.redis.password", "storage.redis.db", "storage.redis.timeout",
		"llm.api_key", "llm.base_url",
	} {
		_ = v.BindEnv(key)
	}
	// conventional names used by hosting platforms
	_ = v.BindEnv("storage.postgres.url", "LOKSABHA_STORAGE_POSTGRES_URL", "PG_URI", "DATABASE_URL")
}

// newViper reads config.json (from path, or the usual search locations), a .env file
// when present and LOKSABHA_* environment variables.
func newViper(path string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("LOKSABHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// LoadConfig loads the full service configuration and validates every section.
func LoadConfig(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM = cfg.LLM.Normalize()
	cfg.CORS = cfg.CORS.Normalize()

	for _, validate := range []func() error{
		cfg.General.Validate,
		cfg.Storage.Postgres.Validate,
		cfg.Storage.Redis.Validate,
		cfg.LLM.Validate,
		cfg.Validator.Validate,
		cfg.Refresh.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadValidatorConfig loads only the validator section, so offline tooling
// works without database or model settings.
func LoadValidatorConfig(path string) (ValidatorConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return ValidatorConfig{}, err
	}
	// per-key reads pick up env overrides that a sub-tree unmarshal misses
	vc := ValidatorConfig{
		GrammarCheck: v.GetBool("validator.grammar_check"),
		Table:        v.GetString("validator.table"),
	}
	if err := vc.Validate(); err != nil {
		return ValidatorConfig{}, err
	}
	return vc, nil
}
