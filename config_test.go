package careauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "leeway zero valid",
			mutate: func(c *Config) {
				c.Session.ExpiryLeeway = 0
			},
			wantValid: true,
		},
		{
			name: "leeway negative invalid",
			mutate: func(c *Config) {
				c.Session.ExpiryLeeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "leeway too large invalid",
			mutate: func(c *Config) {
				c.Session.ExpiryLeeway = 10 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "hydrate timeout zero invalid",
			mutate: func(c *Config) {
				c.Session.HydrateTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "blank key invalid",
			mutate: func(c *Config) {
				c.Persistence.Key = "   "
			},
			wantValid: false,
		},
		{
			name: "write timeout zero invalid",
			mutate: func(c *Config) {
				c.Persistence.WriteTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "async without buffer invalid",
			mutate: func(c *Config) {
				c.Notify.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "sync without buffer valid",
			mutate: func(c *Config) {
				c.Notify.Async = false
				c.Notify.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "histograms without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
		{
			name: "empty message invalid",
			mutate: func(c *Config) {
				c.Messages.SessionExpired = ""
			},
			wantValid: false,
		},
		{
			name: "empty failure message invalid",
			mutate: func(c *Config) {
				c.Messages.ProfileFailed = ""
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigStorageKey(t *testing.T) {
	if got := DefaultConfig().Persistence.Key; got != "auth-storage" {
		t.Fatalf("expected auth-storage, got %q", got)
	}
}

func TestCloneConfigTrimsKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.Key = "  family-auth "
	if got := cloneConfig(cfg).Persistence.Key; got != "family-auth" {
		t.Fatalf("expected trimmed key, got %q", got)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.WriteTimeout = 0

	_, err := New().WithConfig(cfg).WithAuthClient(&fakeAuthClient{}).Build(context.Background())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
