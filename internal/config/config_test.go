package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Equal(t, nil, err)

	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, 10*time.Minute, c.FetchInterval)
	assert.Equal(t, 8*time.Second, c.FetchTimeout)
	assert.Equal(t, 3, c.EnrichBatchSize)
	assert.Equal(t, 4500*time.Millisecond, c.EnrichCooldown)
	assert.Equal(t, 30, c.EnrichQualityFloor)
	assert.Equal(t, 4, len(c.FetchProxies))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	content := `
database_driver = "postgres"
database_dsn = "postgres://localhost/crypto"
fetch_interval = "5m"
filter_keywords = ["sponsored", "press release"]
`
	assert.Equal(t, nil, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CRYPTOINTEL_RETENTION_DAYS", "7")

	c, err := Load(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, "postgres", c.DatabaseDriver)
	assert.Equal(t, 5*time.Minute, c.FetchInterval)
	assert.Equal(t, []string{"sponsored", "press release"}, c.FilterKeywords)
	assert.Equal(t, 7, c.RetentionDays)
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
sources:
  - name: CoinDesk
    url: https://www.coindesk.com/arc/outboundfeeds/rss
  - name: Decrypt
    url: https://decrypt.co/feed
    enabled: false
`
	assert.Equal(t, nil, os.WriteFile(path, []byte(content), 0o600))

	sources, err := LoadSources(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(sources))
	assert.Equal(t, "CoinDesk", sources[0].Name)
	assert.Equal(t, true, sources[0].Enabled)
	assert.Equal(t, false, sources[1].Enabled)

	sources, err = LoadSources(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(sources))
}

func TestLoadSourcesRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	assert.Equal(t, nil, os.WriteFile(path, []byte("sources:\n  - name: NoURL\n"), 0o600))

	_, err := LoadSources(path)
	assert.NotEqual(t, nil, err)
}
