package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	conf, err := Load(writeConfig(t, `
bridge:
  url: "https://bridge.example.org"
redis:
  address: "127.0.0.1"
  port: "6379"
`))
	require.NoError(t, err)

	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, ":8080", conf.HTTP.Listen)
	assert.Equal(t, 2*time.Minute, conf.HTTP.ConnectTimeout)
	assert.Equal(t, "https://metamask.io/download.html", conf.Injected.InstallURL)
	assert.Equal(t, "https://bridge.example.org", conf.Bridge.URL)
	assert.Equal(t, "walletconnect", conf.Bridge.StorageKey)
	assert.Equal(t, "Fungily", conf.Bridge.Meta.Name)
	assert.Equal(t, "wallet_session", conf.Kafka.StateTopic)
	assert.Equal(t, "127.0.0.1:6379", conf.RedisCredential.GetRedisAddress())
}

func TestLoadBundledConfig(t *testing.T) {
	conf, err := Load("config.yml")
	require.NoError(t, err)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 60*time.Second, conf.HTTP.RequestTimeout)
	assert.Equal(t, 2*time.Second, conf.Injected.PollInterval)
	assert.Equal(t, 168*time.Hour, conf.Bridge.SessionTTL)
	assert.Equal(t, 1, conf.Bridge.ChainID)
	assert.Equal(t, []string{"https://fungily.io/favicon.ico"}, conf.Bridge.Meta.Icons)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = Load(writeConfig(t, "http: [not, a, map]"))
	assert.Error(t, err)
}
