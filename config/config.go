package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes environment overrides, e.g. SCHOOLGATE_BASE_URL.
const DefaultEnvPrefix = "SCHOOLGATE"

// Session storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds console configuration.
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" split_words:"true"`
	Host        string      `json:"host" yaml:"host" split_words:"true"`
	BaseURL     string      `json:"base_url" yaml:"base_url" split_words:"true"`
	Timeout     Duration    `json:"timeout" yaml:"timeout" split_words:"true"`
	MaxAttempts int         `json:"max_attempts" yaml:"max_attempts" split_words:"true"`

	RetryBaseDelay  Duration `json:"retry_base_delay" yaml:"retry_base_delay" split_words:"true"`
	RetryMaxDelay   Duration `json:"retry_max_delay" yaml:"retry_max_delay" split_words:"true"`
	RateLimit       float64  `json:"rate_limit" yaml:"rate_limit" split_words:"true"`
	RateBurst       int      `json:"rate_burst" yaml:"rate_burst" split_words:"true"`
	BreakerFailures int      `json:"breaker_failures" yaml:"breaker_failures" split_words:"true"`
	BreakerReset    Duration `json:"breaker_reset" yaml:"breaker_reset" split_words:"true"`

	SessionBackend string `json:"session_backend" yaml:"session_backend" split_words:"true"`
	SessionKey     string `json:"session_key" yaml:"session_key" split_words:"true"`
	SessionDir     string `json:"session_dir" yaml:"session_dir" split_words:"true"`
	RedisURL       string `json:"redis_url" yaml:"redis_url" split_words:"true"`
	PostgresDSN    string `json:"postgres_dsn" yaml:"postgres_dsn" split_words:"true"`

	Tracing   bool   `json:"tracing" yaml:"tracing" split_words:"true"`
	LogLevel  string `json:"log_level" yaml:"log_level" split_words:"true"`
	LogFormat string `json:"log_format" yaml:"log_format" split_words:"true"`
}

// Default returns safe defaults. Environment, BaseURL, Timeout and
// MaxAttempts stay unset so Resolve can fill them from the tier.
func Default() Config {
	return Config{
		RetryBaseDelay: Duration(time.Second),
		RetryMaxDelay:  Duration(10 * time.Second),
		RateBurst:      1,
		BreakerReset:   Duration(30 * time.Second),
		SessionBackend: BackendFile,
		SessionKey:     "school_auth",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Duration is a time.Duration that decodes from Go duration strings
// ("15s") or from integer milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a duration string or integer milliseconds.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a JSON string or number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return d.UnmarshalText([]byte(text))
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	return d.UnmarshalText([]byte(number.String()))
}

// UnmarshalYAML accepts a YAML scalar.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}
