package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Storefront holds the terminal client's settings. Command-line flags override them.
type Storefront struct {
	APIURL            string
	CustomerName      string
	CheckoutRetries   int
	TrackPollInterval time.Duration
}

// LoadStorefront reads .env when present, then the process environment.
func LoadStorefront() (*Storefront, error) {
	// missing .env is normal for the client
	_ = godotenv.Load()

	cfg := &Storefront{
		APIURL:       getEnv("CLOUD_KITCHEN_API", "http://localhost:8080"),
		CustomerName: getEnv("CLOUD_KITCHEN_NAME", "Guest"),
	}

	var err error
	if cfg.CheckoutRetries, err = getInt("CHECKOUT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.TrackPollInterval, err = getDuration("TRACK_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}
