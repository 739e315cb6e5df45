package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
auth:
  trial_days: 7
payments:
  stars_price_month: 150
  ton_price_year: "12.5"
  ton_freshness: 5m
  tribute_products:
    prod_month: month
    prod_year: year
cache:
  ttl: 90s
cleanup:
  grace: 48h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Auth.TrialDays != 7 {
		t.Fatalf("unexpected trial days: %d", cfg.Auth.TrialDays)
	}
	if cfg.Payments.StarsPriceMonth != 150 {
		t.Fatalf("unexpected stars month price: %d", cfg.Payments.StarsPriceMonth)
	}
	if cfg.Payments.TONPriceYear != "12.5" {
		t.Fatalf("unexpected ton year price: %s", cfg.Payments.TONPriceYear)
	}
	if cfg.Payments.TONFreshness != 5*time.Minute {
		t.Fatalf("unexpected ton freshness: %s", cfg.Payments.TONFreshness)
	}
	if cfg.Payments.TributeProducts["prod_year"] != "year" {
		t.Fatalf("unexpected tribute product mapping: %v", cfg.Payments.TributeProducts)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl: %s", cfg.Cache.TTL)
	}
	if cfg.Cleanup.Grace != 48*time.Hour {
		t.Fatalf("unexpected cleanup grace: %s", cfg.Cleanup.Grace)
	}

	// Untouched sections keep their defaults.
	if cfg.Payments.StarsPriceYear != 1000 {
		t.Fatalf("default stars year price lost: %d", cfg.Payments.StarsPriceYear)
	}
	if cfg.Music.BaseURL == "" {
		t.Fatalf("default music base url lost")
	}
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://env-dsn")
	t.Setenv("TON_WALLET_ADDRESS", "UQEnvWallet")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("TRIAL_DAYS", "14")
	t.Setenv("DOWNLOADS_PER_MINUTE", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Postgres.DSN != "postgres://env-dsn" {
		t.Fatalf("unexpected dsn: %s", cfg.Postgres.DSN)
	}
	if cfg.Payments.TONWallet != "UQEnvWallet" {
		t.Fatalf("unexpected wallet: %s", cfg.Payments.TONWallet)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Fatalf("unexpected cache ttl: %s", cfg.Cache.TTL)
	}
	if cfg.Auth.TrialDays != 14 {
		t.Fatalf("unexpected trial days: %d", cfg.Auth.TrialDays)
	}
	if cfg.Limits.DownloadsPerMinute != 5 {
		t.Fatalf("unexpected download limit: %d", cfg.Limits.DownloadsPerMinute)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CACHE_TTL", "not-a-duration")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid duration override")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"OWNER_ID",
		"TRIAL_DAYS",
		"BOT_TOKEN",
		"BOT_USERNAME",
		"TON_WALLET_ADDRESS",
		"TON_API_URL",
		"TON_API_KEY",
		"TRIBUTE_API_KEY",
		"TRIBUTE_LINK_MONTH",
		"TRIBUTE_LINK_YEAR",
		"GENIUS_API_TOKEN",
		"MUSIC_BASE_URL",
		"CACHE_TTL",
		"CLEANUP_SCHEDULE",
		"CLEANUP_GRACE",
		"DOWNLOADS_PER_MINUTE",
		"DOWNLOADS_PER_HOUR",
	} {
		t.Setenv(key, "")
	}
}
