package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.Env != "dev" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxUploadSizeMB != 20 {
		t.Fatalf("MaxUploadSizeMB = %d", cfg.MaxUploadSizeMB)
	}
	if cfg.JobTimeout != 10*time.Minute || cfg.JobRetention != 24*time.Hour {
		t.Fatalf("job durations: %v / %v", cfg.JobTimeout, cfg.JobRetention)
	}
	if cfg.RatesTTL != time.Hour {
		t.Fatalf("RatesTTL = %v", cfg.RatesTTL)
	}
	if cfg.ExchangeRates == "" {
		t.Fatalf("EXCHANGE_RATES needs a default")
	}
	rates, err := ParseExchangeRates(cfg.ExchangeRates)
	if err != nil {
		t.Fatalf("default EXCHANGE_RATES must parse: %v", err)
	}
	if rates["Rupiah"] != 1 {
		t.Fatalf("default base currency rate = %g", rates["Rupiah"])
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := chtemp(t)
	env := "PORT=9090\n" +
		"DATABASE_URL=postgres://localhost/demandcast\n" +
		"JOB_TIMEOUT=2m\n" +
		"EXCHANGE_RATES=Rupiah=1,Euro=17500\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://localhost/demandcast" {
		t.Fatalf("DatabaseURL = %s", cfg.DatabaseURL)
	}
	if cfg.JobTimeout != 2*time.Minute {
		t.Fatalf("JobTimeout = %v", cfg.JobTimeout)
	}
	rates, err := ParseExchangeRates(cfg.ExchangeRates)
	if err != nil {
		t.Fatalf("parse rates: %v", err)
	}
	if rates["Euro"] != 17500 {
		t.Fatalf("Euro rate = %g", rates["Euro"])
	}
}

func TestParseExchangeRates(t *testing.T) {
	rates, err := ParseExchangeRates("Rupiah=1, US Dollar=16000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rates["Rupiah"] != 1 || rates["US Dollar"] != 16000 {
		t.Fatalf("rates = %v", rates)
	}

	if _, err := ParseExchangeRates("Rupiah"); err == nil {
		t.Fatalf("entry without '=' must error")
	}
	if _, err := ParseExchangeRates("USD=lots"); err == nil {
		t.Fatalf("unparseable rate must error")
	}

	empty, err := ParseExchangeRates("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input: %v %v", empty, err)
	}
}
