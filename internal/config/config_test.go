package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultInputDir, cfg.InputDir)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultDevOutputDir, cfg.DevOutputDir)
	assert.Equal(t, DefaultStaticDirName, cfg.StaticDirName)
	assert.Equal(t, DefaultComponentsDirName, cfg.ComponentsDirName)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.True(t, cfg.Server.Open)
	assert.NotEmpty(t, cfg.Build.Ignore)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("input_dir", "pages")
	viper.Set("output_dir", "public")
	viper.Set("static_dir_name", "assets")
	viper.Set("server.port", 9001)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pages", cfg.InputDir)
	assert.Equal(t, "public", cfg.OutputDir)
	assert.Equal(t, "assets", cfg.StaticDirName)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoadEmptyStaticDirDisablesStaticHandling(t *testing.T) {
	viper.Reset()
	viper.Set("static_dir_name", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.StaticDirName)
}

func TestLoadRejectsTraversal(t *testing.T) {
	viper.Reset()
	viper.Set("input_dir", "../outside")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "traversal")
}

func TestLoadRejectsNestedStaticDirName(t *testing.T) {
	viper.Reset()
	viper.Set("static_dir_name", "a/b")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 70000)

	_, err := Load()
	require.Error(t, err)
}

func TestEffectiveOutputDir(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, cfg.OutputDir, cfg.EffectiveOutputDir(false))
	assert.Equal(t, cfg.DevOutputDir, cfg.EffectiveOutputDir(true))

	cfg.Production = true
	assert.Equal(t, cfg.OutputDir, cfg.EffectiveOutputDir(true))
}
