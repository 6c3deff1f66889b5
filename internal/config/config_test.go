//go:build !integration

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
database:
  url: ${PAWPLAN_TEST_DB}
stripe:
  secret_key: sk_test_x
auth:
  jwt_secret: s3cret
`

func TestParse_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("PAWPLAN_TEST_DB", "postgres://u:p@localhost/pawplan")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost/pawplan", cfg.Database.URL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, uint32(5), cfg.Stripe.Breaker.FailureThreshold)
	assert.Equal(t, 72*time.Hour, cfg.Maintenance.EmptyPlanAfter)
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.CheckoutTimeout)
	assert.Len(t, cfg.Pricing.Tiers, 4)
	assert.Len(t, cfg.Delivery.Areas, 3)
}

func TestParse_CustomTiers(t *testing.T) {
	doc := `
database: {url: "postgres://x"}
stripe: {secret_key: sk}
auth: {jwt_secret: s}
pricing:
  therapeutic_surcharge: 0.75
  tiers:
    - {class: small, max_lb: 20, base_price_per_100g: 3.0}
    - {class: large, max_lb: .inf, base_price_per_100g: 2.0}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Pricing.Tiers, 2)
	assert.True(t, math.IsInf(cfg.Pricing.Tiers[1].MaxLb, 1))
	assert.InDelta(t, 0.75, cfg.Pricing.TherapeuticSurcharge, 1e-9)
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"missing database": "stripe: {secret_key: sk}\nauth: {jwt_secret: s}\n",
		"missing stripe":   "database: {url: x}\nauth: {jwt_secret: s}\n",
		"missing auth":     "database: {url: x}\nstripe: {secret_key: sk}\n",
		"bounded last tier": `
database: {url: x}
stripe: {secret_key: sk}
auth: {jwt_secret: s}
pricing:
  tiers:
    - {class: small, max_lb: 20, base_price_per_100g: 3.0}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Setenv("PAWPLAN_TEST_DB", "postgres://file")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.True(t, cfg.Runtime.Dev)
	assert.Equal(t, "postgres://file", cfg.Database.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}
