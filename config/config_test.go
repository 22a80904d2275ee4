package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OPERATOR_PASSWORD", "kitchen-pass")
	t.Setenv("DELIVERY_PASSWORD", "rider-pass")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.CheckoutAtomic)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.BoardPollInterval)
	require.Len(t, cfg.Operators, 3)
	assert.Equal(t, "admin", cfg.Operators[0].Username)
	assert.True(t, cfg.Operators[0].CheckPassword("kitchen-pass"))
	assert.False(t, cfg.Operators[0].CheckPassword("admin1234"))
	assert.Equal(t, "delivery", cfg.Operators[1].Role)
	assert.Equal(t, "staff", cfg.Operators[2].Role)
}

func TestLoadOverrides(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHECKOUT_ATOMIC", "false")
	t.Setenv("DISPLAY_ID_SCHEME", "random")
	t.Setenv("BOARD_POLL_INTERVAL", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("OPERATOR_USERNAME", "chef")
	t.Setenv("OPERATOR_PASSWORD_HASH", string(hash))
	t.Setenv("DELIVERY_PASSWORD", "x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.CheckoutAtomic)
	assert.Equal(t, "random", cfg.DisplayIDScheme)
	assert.Equal(t, 3*time.Second, cfg.BoardPollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "chef", cfg.Operators[0].Username)
	assert.True(t, cfg.Operators[0].CheckPassword("s3cret"))
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestReleaseModeRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "release")

	_, err := Load()
	assert.Error(t, err)
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(&Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestLoadStorefront(t *testing.T) {
	t.Setenv("CLOUD_KITCHEN_API", "")
	t.Setenv("CLOUD_KITCHEN_NAME", "")
	t.Setenv("CHECKOUT_RETRIES", "")
	t.Setenv("TRACK_POLL_INTERVAL", "")

	cfg, err := LoadStorefront()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, "Guest", cfg.CustomerName)
	assert.Equal(t, 3, cfg.CheckoutRetries)
	assert.Equal(t, 10*time.Second, cfg.TrackPollInterval)

	t.Setenv("CLOUD_KITCHEN_API", "https://kitchen.example")
	t.Setenv("TRACK_POLL_INTERVAL", "2s")
	t.Setenv("CHECKOUT_RETRIES", "5")
	cfg, err = LoadStorefront()
	require.NoError(t, err)
	assert.Equal(t, "https://kitchen.example", cfg.APIURL)
	assert.Equal(t, 5, cfg.CheckoutRetries)
	assert.Equal(t, 2*time.Second, cfg.TrackPollInterval)

	t.Setenv("TRACK_POLL_INTERVAL", "-1s")
	_, err = LoadStorefront()
	assert.Error(t, err)
}
