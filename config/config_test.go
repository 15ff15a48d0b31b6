package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Inventory.PageSize)
	assert.Equal(t, "inventory.db", cfg.Database.BoltFile)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "stockledger.yml")
	content := `
system:
  workdir: ` + dir + `
database:
  type: bolt
  bolt_file: ledger.db
inventory:
  page_size: 25
  seed: true
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o600))

	cfg, err := LoadConfig(cfile)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Database.Type)
	assert.Equal(t, 25, cfg.Inventory.PageSize)
	assert.True(t, cfg.Inventory.Seed)
	assert.Equal(t, filepath.Join(dir, "data", "ledger.db"), cfg.BoltPath())
	// untouched sections keep their defaults
	assert.Equal(t, 3000, cfg.Web.Port)
}

func TestApplyEnv(t *testing.T) {
	cfg := *DefaultAppConfig
	env := map[string]string{
		"STOCKLEDGER_DB_TYPE":             "memory",
		"STOCKLEDGER_WEB_PORT":            "8080",
		"STOCKLEDGER_WEB_CORS_ORIGINS":    "http://a.test, http://b.test",
		"STOCKLEDGER_INVENTORY_SEED":      "true",
		"STOCKLEDGER_INVENTORY_PAGE_SIZE": "50",
		"STOCKLEDGER_INVENTORY_NODE":      "7",
		"STOCKLEDGER_LOGGER_FILE_ENABLE":  "",
	}
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Web.CORSOrigins)
	assert.True(t, cfg.Inventory.Seed)
	assert.Equal(t, 50, cfg.Inventory.PageSize)
	assert.EqualValues(t, 7, cfg.Inventory.Node)
	assert.False(t, cfg.Logger.FileEnable)
}

func TestValidateRejectsUnknownDatabase(t *testing.T) {
	cfg := *DefaultAppConfig
	cfg.Database.Type = "sqlite"
	assert.Error(t, cfg.validate())
}
