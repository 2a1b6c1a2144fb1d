package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 2*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, int64(1000), cfg.Account.OpeningBalance)
	assert.Equal(t, int64(10000), cfg.Wager.MaxBet)
	assert.Equal(t, 50, cfg.Audit.HistoryPageSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Audit.RetryInterval)
	assert.Equal(t, "0 0 3 * * *", cfg.Scheduler.Reconcile)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	yaml := `
wager:
  min_bet: 5
  max_bet: 500
audit:
  active_key_id: k1
  keys:
    k1: ` + key + `
admin:
  ids: [42]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "750ms")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.Equal(t, int64(5), cfg.Wager.MinBet)
	assert.Equal(t, int64(500), cfg.Wager.MaxBet)
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(43))

	keys, err := cfg.Audit.DecodedKeys()
	require.NoError(t, err)
	assert.Len(t, keys["k1"], 32)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Wager:  WagerConfig{MinBet: 1, MaxBet: 10},
			Ledger: LedgerConfig{LockTimeout: time.Second},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min bet", func(c *Config) { c.Wager.MinBet = 0 }},
		{"max below min", func(c *Config) { c.Wager.MaxBet = 0 }},
		{"no lock timeout", func(c *Config) { c.Ledger.LockTimeout = 0 }},
		{"negative opening", func(c *Config) { c.Account.OpeningBalance = -1 }},
		{"negative wagering", func(c *Config) { c.Promotion.WageringMultiplier = -1 }},
		{"active key missing", func(c *Config) {
			c.Audit.Keys = map[string]string{"k1": "x"}
			c.Audit.ActiveKeyID = "k2"
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDecodedKeys_BadBase64(t *testing.T) {
	a := AuditConfig{Keys: map[string]string{"k1": "not base64!"}}
	_, err := a.DecodedKeys()
	assert.ErrorContains(t, err, "k1")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5433, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}
