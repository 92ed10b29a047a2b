package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:3001/api" {
		t.Fatalf("unexpected backend url %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Fatalf("expected 10s backend timeout, got %v", cfg.Backend.Timeout)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("expected memory storage by default, got %q", cfg.Storage.Driver)
	}
	threshold, err := cfg.Pricing.FreeShippingThreshold()
	if err != nil || threshold.String() != "500" {
		t.Fatalf("unexpected threshold %s err=%v", threshold, err)
	}
	flat, err := cfg.Pricing.FlatShipping()
	if err != nil || flat.StringFixed(2) != "29.90" {
		t.Fatalf("unexpected flat shipping %s err=%v", flat, err)
	}
	if len(cfg.Coupons.Table) != 2 {
		t.Fatalf("expected default coupon table, got %v", cfg.Coupons.Table)
	}
	if cfg.Events.Enabled() {
		t.Fatalf("events should be disabled without brokers")
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.AuthLimitEmail != 5 {
		t.Fatalf("unexpected http defaults %+v", cfg.HTTP)
	}
}

func TestLoad_RedisDriverRequiresURL(t *testing.T) {
	t.Setenv(EnvStorageDriver, "redis")
	t.Setenv(EnvRedisURL, "")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing redis url to return an error")
	}

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error with redis url: %v", err)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		EnvStorageDriver: "sqlite",
		EnvFreeShipping:  "abc",
		EnvFlatShipping:  "-1",
		EnvBackendURL:    "not a url",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to fail", key, value)
			}
		})
	}
}

func TestLoad_EventsBrokers(t *testing.T) {
	t.Setenv(EnvEventsBrokers, "kafka-1:9092,kafka-2:9092")
	t.Setenv(EnvSyncEnabled, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if !cfg.Events.Enabled() || len(cfg.Events.Brokers) != 2 {
		t.Fatalf("expected two brokers, got %v", cfg.Events.Brokers)
	}
	if !cfg.Sync.Enabled {
		t.Fatalf("expected sync enabled")
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() || devConfig.IsProd() {
		t.Fatalf("unexpected helpers for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() || prodConfig.IsDev() {
		t.Fatalf("unexpected helpers for %q", prodConfig.Env)
	}
}
