package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunInterval != 6*time.Hour {
		t.Fatalf("run interval = %v", cfg.RunInterval)
	}
	if cfg.FetchRetryAttempts != 3 || cfg.FetchRetryWait != 2*time.Second || cfg.StoreDelay != 2*time.Second {
		t.Fatalf("unexpected fetch defaults %+v", cfg)
	}
	if cfg.StorageType != "bbolt" || cfg.RunLockType != "local" {
		t.Fatalf("unexpected backend defaults %q %q", cfg.StorageType, cfg.RunLockType)
	}
	if len(cfg.Stores) != 8 || cfg.Stores[0] != "amazon" {
		t.Fatalf("unexpected stores %v", cfg.Stores)
	}
	if cfg.MaxDiscountAmount != 100000 || cfg.MaxMinimumPurchase != 1000000 || cfg.MinCodeLength != 3 {
		t.Fatalf("unexpected admission thresholds %+v", cfg)
	}
	if cfg.Location == nil {
		t.Fatalf("expected location")
	}
}

func TestLoadStoresFromEnv(t *testing.T) {
	t.Setenv("STORES", "Amazon, myntra,,nykaa")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"amazon", "myntra", "nykaa"}
	if len(cfg.Stores) != len(want) {
		t.Fatalf("stores = %v", cfg.Stores)
	}
	for i := range want {
		if cfg.Stores[i] != want[i] {
			t.Fatalf("stores = %v", cfg.Stores)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":      {"STORAGE_TYPE": "mongo"},
		"postgres without dsn": {"STORAGE_TYPE": "postgres"},
		"redis without addr":   {"RUNLOCK_TYPE": "redis"},
		"zero interval":        {"RUN_INTERVAL": "0"},
		"max wait below wait":  {"FETCH_RETRY_WAIT_MS": "5000", "FETCH_RETRY_MAX_WAIT_MS": "1000"},
		"bad timezone":         {"TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
