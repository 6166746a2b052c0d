package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DEFAULT_LISTEN_ADDR, cfg.ListenAddr)
	assert.Equal(t, DEFAULT_REDIS_ADDR, cfg.RedisAddr)
	assert.Equal(t, DEFAULT_JWT_ISSUER, cfg.JWTIssuer)
	assert.Equal(t, DEFAULT_JWT_EXPIRY_HOURS, cfg.JWTExpiryHours)
	assert.Equal(t, DEFAULT_CURRENCY, cfg.DefaultCurrency)
	assert.Equal(t, DEFAULT_SYNC_PAGE_SIZE, cfg.SyncPageSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"listen_addr": ":9000",
		"database_url": "postgres://localhost/clinicback_test",
		"default_currency": "eur",
		"sync_page_size": 25
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DEFAULT_CONFIG_FILE), []byte(body), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "postgres://localhost/clinicback_test", cfg.DatabaseURL)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 25, cfg.SyncPageSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, DEFAULT_REDIS_ADDR, cfg.RedisAddr)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"listen_addr": ":9000", "jwt_expiry_hours": 48}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DEFAULT_CONFIG_FILE), []byte(body), 0o644))

	t.Setenv("LISTEN_ADDR", ":9100")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc")
	t.Setenv("JWT_EXPIRY_HOURS", "not-a-number")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, "sk_test_abc", cfg.StripeSecretKey)
	// Unparseable env value falls back to the file's setting.
	assert.Equal(t, 48, cfg.JWTExpiryHours)
}

func TestAtoiOrDefault(t *testing.T) {
	assert.Equal(t, 42, atoiOrDefault("42", 7))
	assert.Equal(t, 7, atoiOrDefault("", 7))
	assert.Equal(t, 7, atoiOrDefault("forty", 7))
}

func TestLoadPlanSeeds(t *testing.T) {
	dir := t.TempDir()
	body := `[
		{"name": "starter", "priceCents": 4900, "currency": "usd", "interval": "month", "isDefault": true},
		{"name": "clinic", "priceCents": 14900, "currency": "usd", "interval": "month"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DEFAULT_PLANS_FILE), []byte(body), 0o644))

	seeds, err := LoadPlanSeeds(dir)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.True(t, seeds[0].IsDefault)
	assert.EqualValues(t, 14900, seeds[1].PriceCents)

	seed := GetPlanSeed(seeds, "clinic")
	require.NotNil(t, seed)
	assert.Equal(t, "clinic", seed.Name)
	assert.Nil(t, GetPlanSeed(seeds, "enterprise"))
}

func TestIdempotencyKeyStable(t *testing.T) {
	a := IdempotencyKey("customer", "12", "owner@example.com")
	b := IdempotencyKey("customer", "12", "owner@example.com")
	c := IdempotencyKey("customer", "13", "owner@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
