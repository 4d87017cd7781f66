package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/playerrelay/internal/services/players"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Log format constants
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the server configuration read from the environment
type Config struct {
	Host string
	Port int

	StorageType    string
	RedisURL       string
	RedisKeyPrefix string
	RedisTTL       time.Duration

	DuplicatePolicy players.DuplicatePolicy

	SendTimeout          time.Duration
	SendBufferSize       int
	BroadcastConcurrency int

	MaxMessageSize     int64
	AllowedOrigins     []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	LogLevel  slog.Level
	LogFormat string
}

// Default returns the configuration used when no variables are set
func Default() Config {
	return Config{
		Port:                 8080,
		StorageType:          StorageTypeMemory,
		RedisKeyPrefix:       "relay",
		DuplicatePolicy:      players.PolicyAppend,
		SendTimeout:          5 * time.Second,
		SendBufferSize:       16,
		BroadcastConcurrency: 32,
		MaxMessageSize:       64 * 1024,
		LogLevel:             slog.LevelInfo,
		LogFormat:            LogFormatJSON,
	}
}

// Load reads the configuration from the process environment
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup. Every invalid variable
// is reported, not just the first.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str("HOST", &cfg.Host)
	p.integer("PORT", &cfg.Port)
	p.str("STORAGE_TYPE", &cfg.StorageType)
	p.str("REDIS_URL", &cfg.RedisURL)
	p.str("REDIS_KEY_PREFIX", &cfg.RedisKeyPrefix)
	p.duration("REDIS_TTL", &cfg.RedisTTL)
	if v, ok := p.get("DUPLICATE_POLICY"); ok {
		policy, err := players.ParseDuplicatePolicy(v)
		if err != nil {
			p.fail("DUPLICATE_POLICY", err)
		} else {
			cfg.DuplicatePolicy = policy
		}
	}
	p.duration("SEND_TIMEOUT", &cfg.SendTimeout)
	p.integer("SEND_BUFFER_SIZE", &cfg.SendBufferSize)
	p.integer("BROADCAST_CONCURRENCY", &cfg.BroadcastConcurrency)
	if v, ok := p.get("MAX_MESSAGE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			p.fail("MAX_MESSAGE_SIZE", err)
		} else {
			cfg.MaxMessageSize = n
		}
	}
	if v, ok := p.get("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}
	if v, ok := p.get("RATE_LIMIT_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail("RATE_LIMIT_PER_SECOND", err)
		} else {
			cfg.RateLimitPerSecond = f
		}
	}
	p.integer("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	if v, ok := p.get("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			p.fail("LOG_LEVEL", err)
		}
	}
	if v, ok := p.get("LOG_FORMAT"); ok {
		cfg.LogFormat = strings.ToLower(v)
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that parse but make no sense
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE %q: must be memory or redis", c.StorageType))
	}
	if c.RedisTTL < 0 {
		errs = append(errs, errors.New("REDIS_TTL must not be negative"))
	}
	if c.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT must be positive"))
	}
	if c.SendBufferSize <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER_SIZE must be positive"))
	}
	if c.BroadcastConcurrency <= 0 {
		errs = append(errs, errors.New("BROADCAST_CONCURRENCY must be positive"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_SIZE must be positive"))
	}
	if c.RateLimitPerSecond < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatText {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: must be json or text", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by the configuration
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

// get returns a variable's trimmed value; blank counts as unset
func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
