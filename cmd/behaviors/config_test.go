package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"BEHAVIORS_RULES_PATH", "BEHAVIORS_DB_PATH", "BEHAVIORS_LOG_LEVEL", "BEHAVIORS_LOG_FORMAT"} {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := withHome(t)

	cfg := loadConfig()
	assert.Equal(t, filepath.Join(home, ".behaviors", "behaviors.yaml"), cfg.RulesPath)
	assert.Equal(t, filepath.Join(home, ".behaviors", "behaviors.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_SettingsThenEnv(t *testing.T) {
	home := withHome(t)
	dir := filepath.Join(home, ".behaviors")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"),
		[]byte(`{"rules_path": "/etc/rules.json", "log_level": "debug", "log_format": "json"}`), 0o644))

	cfg := loadConfig()
	assert.Equal(t, "/etc/rules.json", cfg.RulesPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	t.Setenv("BEHAVIORS_RULES_PATH", "/tmp/override.yaml")
	t.Setenv("BEHAVIORS_LOG_LEVEL", "warn")
	cfg = loadConfig()
	assert.Equal(t, "/tmp/override.yaml", cfg.RulesPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_EmptyDBPathDisablesTriggerLog(t *testing.T) {
	withHome(t)
	t.Setenv("BEHAVIORS_DB_PATH", "")

	cfg := loadConfig()
	assert.Empty(t, cfg.DBPath)
	assert.Empty(t, cfg.dbURI())
}

func TestLoadConfig_MalformedSettingsIgnored(t *testing.T) {
	home := withHome(t)
	dir := filepath.Join(home, ".behaviors")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{not json`), 0o644))

	assert.Equal(t, defaultConfig(), loadConfig())
}

func TestConfig_Validate(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogFormat = "xml"
	assert.ErrorContains(t, cfg.validate(), "log_format")

	cfg = defaultConfig()
	cfg.RulesPath = ""
	assert.ErrorContains(t, cfg.validate(), "rules_path")
}

func TestConfig_DBURI(t *testing.T) {
	assert.Equal(t, "file:/var/lib/behaviors.db", Config{DBPath: "/var/lib/behaviors.db"}.dbURI())
	assert.Equal(t, "file:already.db", Config{DBPath: "file:already.db"}.dbURI())
	assert.Equal(t, "", Config{}.dbURI())
}

func TestInstall_WritesSettings(t *testing.T) {
	home := withHome(t)

	require.NoError(t, install(installOptions{
		RulesPath: "/srv/rules.yaml",
		NoDB:      true,
		LogLevel:  "debug",
		LogFormat: "json",
	}))

	cfg := loadConfig()
	assert.Equal(t, "/srv/rules.yaml", cfg.RulesPath)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.FileExists(t, filepath.Join(home, ".behaviors", "settings.json"))
}

func TestInstall_RejectsBadFormat(t *testing.T) {
	home := withHome(t)

	err := install(installOptions{LogLevel: "info", LogFormat: "yaml"})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(home, ".behaviors", "settings.json"))
}
