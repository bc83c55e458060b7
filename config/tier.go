package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Environment is a deployment tier.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Valid reports whether e is a known tier.
func (e Environment) Valid() bool {
	switch e {
	case Development, Staging, Production:
		return true
	default:
		return false
	}
}

// Tier carries the per-environment defaults.
type Tier struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

// DevelopmentBaseURL is the API of a locally running school server.
const DevelopmentBaseURL = "http://localhost:5000/api"

// DetectEnvironment classifies a hosting domain. An empty host is a local
// checkout and therefore development.
func DetectEnvironment(host string) Environment {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	switch {
	case host == "", host == "localhost", strings.HasSuffix(host, ".localhost"):
		return Development
	case strings.HasSuffix(host, ".local"), strings.HasSuffix(host, ".test"):
		return Development
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return Development
	}
	if strings.HasPrefix(host, "staging.") || strings.Contains(host, "-staging") || strings.Contains(host, ".staging.") {
		return Staging
	}
	return Production
}

// TierFor returns the defaults for env served from host.
func TierFor(env Environment, host string) (Tier, error) {
	switch env {
	case Development:
		return Tier{BaseURL: DevelopmentBaseURL, Timeout: 30 * time.Second, MaxAttempts: 2}, nil
	case Staging:
		return remoteTier(host, 20*time.Second)
	case Production:
		return remoteTier(host, 15*time.Second)
	default:
		return Tier{}, fmt.Errorf("unknown environment %q", env)
	}
}

func remoteTier(host string, timeout time.Duration) (Tier, error) {
	tier := Tier{Timeout: timeout, MaxAttempts: 3}
	host = strings.TrimSpace(host)
	if host != "" {
		tier.BaseURL = "https://" + host + "/api"
	}
	return tier, nil
}

// Resolve infers the environment from Host when unset and fills BaseURL,
// Timeout and MaxAttempts from the tier where they are zero.
func Resolve(cfg Config) (Config, error) {
	if cfg.Environment == "" {
		cfg.Environment = DetectEnvironment(cfg.Host)
	}
	cfg.Environment = Environment(strings.ToLower(string(cfg.Environment)))

	tier, err := TierFor(cfg.Environment, cfg.Host)
	if err != nil {
		return cfg, err
	}
	if cfg.BaseURL == "" {
		if tier.BaseURL == "" {
			return cfg, fmt.Errorf("%s environment needs host or base_url", cfg.Environment)
		}
		cfg.BaseURL = tier.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(tier.Timeout)
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = tier.MaxAttempts
	}
	return cfg, nil
}
