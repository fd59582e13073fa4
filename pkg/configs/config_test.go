package configs_test

import (
	"testing"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/rule"
)

func TestDefaults_SectionsValid(t *testing.T) {
	cfg := configs.Defaults()

	sections := map[string]any{
		"server":          cfg.Server,
		"auth":            cfg.Auth,
		"rate_limit":      cfg.RateLimit,
		"circuit_breaker": cfg.CircuitBreaker,
		"scoring":         cfg.Scoring,
		"market":          cfg.Market,
	}

	for name, s := range sections {
		if err := rule.ValidateStruct(s); err != nil {
			t.Errorf("%s defaults invalid: %v", name, err)
		}
	}

	if cfg.Scoring.OnError != configs.FailClosed || cfg.Scoring.VisionOnError != configs.EmptyTags {
		t.Errorf("scoring policies = %s/%s", cfg.Scoring.OnError, cfg.Scoring.VisionOnError)
	}

	if cfg.RateLimit.Key != "header:X-User" {
		t.Errorf("rate limit key = %q", cfg.RateLimit.Key)
	}
}

func TestSectionRules(t *testing.T) {
	cfg := configs.Defaults()

	rl := cfg.RateLimit
	rl.RPS = 0

	cb := cfg.CircuitBreaker
	cb.FailureRate = 1.5

	auth := cfg.Auth
	auth.SkipPaths = []string{"metrics"}

	sc := cfg.Scoring
	sc.VisionOnError = "retry"

	srv := cfg.Server
	srv.Host = "localhost:80"

	cases := map[string]any{
		"rps":             rl,
		"failure_rate":    cb,
		"skip_paths":      auth,
		"vision_on_error": sc,
		"host":            srv,
	}

	for name, s := range cases {
		if err := rule.ValidateStruct(s); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
