package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	JobTimeout      time.Duration `mapstructure:"JOB_TIMEOUT"`
	JobRetention    time.Duration `mapstructure:"JOB_RETENTION"`
	SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
	RatesURL        string        `mapstructure:"RATES_URL"`
	RatesTTL        time.Duration `mapstructure:"RATES_TTL"`
	ExchangeRates   string        `mapstructure:"EXCHANGE_RATES"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("JOB_TIMEOUT", "10m")
	v.SetDefault("JOB_RETENTION", "24h")
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("RATES_TTL", "1h")
	v.SetDefault("EXCHANGE_RATES", "Rupiah=1,US Dollar=16000")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseExchangeRates turns the EXCHANGE_RATES value ("Rupiah=1,US Dollar=16000")
// into a currency-to-rate map. Entries without a parseable rate are an error
// so a typo does not silently zero out a currency.
func ParseExchangeRates(s string) (map[string]float64, error) {
	rates := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("exchange rate entry %q: missing '='", part)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("exchange rate entry %q: %w", part, err)
		}
		rates[strings.TrimSpace(name)] = rate
	}
	return rates, nil
}
