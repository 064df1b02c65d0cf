package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "lemlist", cfg.Providers.Email)
	assert.Equal(t, "phantombuster", cfg.Providers.LinkedIn)
	assert.Equal(t, "heygen", cfg.Providers.Video)
	assert.Equal(t, 10, cfg.OrphanQueue.PollIntervalSeconds)
	assert.Equal(t, 30, cfg.OrphanQueue.DrainTimeoutSeconds)
	assert.NotEmpty(t, cfg.Providers.HeyGen.AllowedDomains)
	assert.Equal(t, "data/videos", cfg.Providers.HeyGen.DownloadDir)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 127.0.0.1
database:
  url: postgres://localhost/outreach_test
providers:
  email: postmark
  lemlist:
    api_key: key-123
    webhook_secret: whsec
orphan_queue:
  poll_interval_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postmark", cfg.Providers.Email)
	assert.Equal(t, "key-123", cfg.Providers.Lemlist.APIKey)
	assert.Equal(t, "whsec", cfg.Providers.Lemlist.WebhookSecret)
	assert.Equal(t, 5, cfg.OrphanQueue.PollIntervalSeconds)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "providers:\n  email: lemlist\n")

	t.Setenv("EMAIL_PROVIDER", "postmark")
	t.Setenv("DATABASE_URL", "postgres://env-host/outreach")
	t.Setenv("LEMLIST_WEBHOOK_SECRET", "from-env")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postmark", cfg.Providers.Email)
	assert.Equal(t, "postgres://env-host/outreach", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Providers.Lemlist.WebhookSecret)
}

func TestProvidersConfig_ByName(t *testing.T) {
	p := ProvidersConfig{
		Lemlist: ProviderConfig{APIKey: "a"},
		HeyGen:  VideoConfig{ProviderConfig: ProviderConfig{APIKey: "b"}},
	}

	got, ok := p.ByName("lemlist")
	require.True(t, ok)
	assert.Equal(t, "a", got.APIKey)

	got, ok = p.ByName("heygen")
	require.True(t, ok)
	assert.Equal(t, "b", got.APIKey)

	_, ok = p.ByName("sendgrid")
	assert.False(t, ok)
}
