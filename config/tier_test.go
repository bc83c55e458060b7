package config

import (
	"testing"
	"time"
)

func TestDetectEnvironment(t *testing.T) {
	cases := map[string]Environment{
		"":                         Development,
		"localhost":                Development,
		"localhost:8080":           Development,
		"127.0.0.1":                Development,
		"[::1]:5000":               Development,
		"school.local":             Development,
		"school.test":              Development,
		"staging.school.org":       Staging,
		"school-staging.herokuapp": Staging,
		"app.staging.school.org":   Staging,
		"school.org":               Production,
		"STAGINGSCHOOL.org":        Production,
	}
	for host, want := range cases {
		if got := DetectEnvironment(host); got != want {
			t.Fatalf("DetectEnvironment(%q) = %s, want %s", host, got, want)
		}
	}
}

func TestResolveTiers(t *testing.T) {
	cases := []struct {
		name        string
		cfg         Config
		baseURL     string
		timeout     time.Duration
		maxAttempts int
	}{
		{"development", Config{}, DevelopmentBaseURL, 30 * time.Second, 2},
		{"staging", Config{Host: "staging.school.org"}, "https://staging.school.org/api", 20 * time.Second, 3},
		{"production", Config{Host: "school.org"}, "https://school.org/api", 15 * time.Second, 3},
		{"explicit values win", Config{Host: "school.org", BaseURL: "https://api.school.org", Timeout: Duration(time.Second), MaxAttempts: 1}, "https://api.school.org", time.Second, 1},
		{"explicit environment", Config{Environment: "Staging", BaseURL: "https://x.test/api"}, "https://x.test/api", 20 * time.Second, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Resolve(tc.cfg)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if cfg.BaseURL != tc.baseURL || cfg.Timeout.Std() != tc.timeout || cfg.MaxAttempts != tc.maxAttempts {
				t.Fatalf("unexpected tier values: %s %v %d", cfg.BaseURL, cfg.Timeout, cfg.MaxAttempts)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	if _, err := Resolve(Config{Environment: Production}); err == nil {
		t.Fatalf("expected error for production without host")
	}
	if _, err := Resolve(Config{Environment: "qa"}); err == nil {
		t.Fatalf("expected error for unknown environment")
	}
}

func TestDurationDecoding(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil || d.Std() != 90*time.Second {
		t.Fatalf("string duration: %v %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`15000`)); err != nil || d.Std() != 15*time.Second {
		t.Fatalf("numeric duration: %v %v", d, err)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}
