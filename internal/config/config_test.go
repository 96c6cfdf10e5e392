package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = ":9000"
base_url = "https://drive.example.com/"
root_folder_id = "AbcdEfghijkLmnopQrst-uVwxyZ"
root_folder_name = "Testing Folder"
session_ttl = "2h"
max_depth = 8
`), 0644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", s.ListenAddr)
	assert.Equal(t, "AbcdEfghijkLmnopQrst-uVwxyZ", s.RootFolderID)
	assert.Equal(t, "Testing Folder", s.RootFolderName)
	assert.Equal(t, 2*time.Hour, s.SessionTTL)
	assert.Equal(t, 8, s.MaxDepth)
	assert.Equal(t, "https://drive.example.com/oauth2callback/", s.RedirectURL())
	// untouched keys keep defaults
	assert.Equal(t, ":9090", s.MetricsAddr)
}

func TestLoadSettingsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte(`listen_adr = ":9000"`), 0644))

	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_adr")
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = ":9000"`), 0644))

	t.Setenv(EnvListenAddr, ":7000")
	t.Setenv(EnvDebug, "true")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", s.ListenAddr)
	assert.True(t, s.Debug)

	t.Setenv(EnvCookieSecure, "maybe")
	_, err = LoadSettings(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	s.BaseURL = "/relative"
	s.MaxDepth = 0
	s.LogFormat = "xml"

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "log_format")
}

func TestWriteDefaultSettingsRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	require.NoError(t, WriteDefaultSettings(path))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = ":1"`), 0644))
	require.NoError(t, WriteDefaultSettings(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `listen_addr = ":1"`, string(data))
}

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, SecretsExist(dir))

	want := &Secrets{
		GoogleClient:  ClientCredentials{ID: "client-id", Secret: "client-secret"},
		SessionSecret: "session-secret",
	}
	require.NoError(t, SaveSecrets(dir, "correct horse", want))
	assert.True(t, SecretsExist(dir))

	got, err := LoadSecrets(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, got.Validate())

	raw, err := os.ReadFile(filepath.Join(dir, SecretsFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "client-secret")
}

func TestLoadSecretsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveSecrets(dir, "correct horse", &Secrets{SessionSecret: "s"}))

	_, err := LoadSecrets(dir, "wrong password")
	assert.Error(t, err)
}

func TestLoadSecretsBeforeInit(t *testing.T) {
	_, err := LoadSecrets(t.TempDir(), "whatever1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init")
}

func TestGetMasterPasswordFromEnv(t *testing.T) {
	t.Setenv(EnvMasterPassword, "long enough")
	p, err := GetMasterPassword(true)
	require.NoError(t, err)
	assert.Equal(t, "long enough", p)

	t.Setenv(EnvMasterPassword, "short")
	_, err = GetMasterPassword(false)
	assert.Error(t, err)
}

func TestSecretsValidate(t *testing.T) {
	err := (&Secrets{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id")
	assert.Contains(t, err.Error(), "session secret")
}
