package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("UPI_DEFAULT_PAYEE", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.UPIDefaultPayee)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("INVENTORY_CACHE_TTL_SECONDS", "")
	t.Setenv("LABEL_BUCKET", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "main-store", cfg.StoreID)
	assert.Equal(t, 30, cfg.InventoryCacheTTLSeconds)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, "Vault", cfg.UPIPayeeName)
	assert.Equal(t, "INR", cfg.Currency)
	assert.False(t, cfg.LabelBucket.Enabled())
}

func TestLoadRejectsNonPositiveTTLs(t *testing.T) {
	t.Setenv("INVENTORY_CACHE_TTL_SECONDS", "0")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")

	cfg := Load()
	assert.Equal(t, 30, cfg.InventoryCacheTTLSeconds)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultpos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_store_id: branch-7\nupi_payee_name: Vault Outlet\nlabel_bucket: labels\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("UPI_PAYEE_NAME", "Vault HQ")
	t.Setenv("DEFAULT_STORE_ID", "")
	t.Setenv("LABEL_BUCKET", "")

	cfg := Load()
	assert.Equal(t, "branch-7", cfg.StoreID)
	assert.Equal(t, "Vault HQ", cfg.UPIPayeeName)
	assert.True(t, cfg.LabelBucket.Enabled())
	assert.Equal(t, "auto", cfg.LabelBucket.Region)
}
