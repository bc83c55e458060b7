package config

import (
	"errors"
	"net/url"
	"strings"
)

// Validate validates config values.
func Validate(cfg Config) error {
	var issues []string

	if cfg.Environment != "" && !cfg.Environment.Valid() {
		issues = append(issues, "environment must be one of development|staging|production")
	}
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			issues = append(issues, "base_url must be an absolute http(s) URL")
		}
	}
	if cfg.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if cfg.MaxAttempts < 0 {
		issues = append(issues, "max_attempts must be >= 0")
	}
	if cfg.RetryBaseDelay < 0 || cfg.RetryMaxDelay < 0 {
		issues = append(issues, "retry delays must be >= 0")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		issues = append(issues, "rate_limit and rate_burst must be >= 0")
	}
	if cfg.BreakerFailures < 0 || cfg.BreakerReset < 0 {
		issues = append(issues, "breaker settings must be >= 0")
	}

	switch cfg.SessionBackend {
	case "", BackendMemory, BackendFile:
	case BackendRedis:
		if cfg.RedisURL == "" {
			issues = append(issues, "redis_url is required for the redis session backend")
		}
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			issues = append(issues, "postgres_dsn is required for the postgres session backend")
		}
	default:
		issues = append(issues, "session_backend must be one of memory|file|redis|postgres")
	}

	if cfg.LogLevel != "" && !validLogLevel(cfg.LogLevel) {
		issues = append(issues, "log_level must be one of debug|info|warn|error")
	}
	if cfg.LogFormat != "" && !validLogFormat(cfg.LogFormat) {
		issues = append(issues, "log_format must be one of text|json")
	}

	if len(issues) > 0 {
		return errors.New(strings.Join(issues, "; "))
	}
	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	default:
		return false
	}
}
