package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/grometheus/gromet/pkg/android"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gromet.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output_dir     = "/data/out"
jobs           = 8
log_level      = "debug"
log_format     = "json"
compress_cache = false
debug_tag      = "android-11.0.0_r22"

blueprint {
  roots = ["/src/aosp", "/src/vendor"]
}
blueprint {
  roots = ["/src/extra"]
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, uint(8), cfg.Jobs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	require.NotNil(t, cfg.CompressCache)
	assert.False(t, *cfg.CompressCache)
	assert.Equal(t, "android-11.0.0_r22", cfg.DebugTag)
	assert.Equal(t, []string{"/src/aosp", "/src/vendor", "/src/extra"}, cfg.BlueprintRoots())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ``))
	require.NoError(t, err)
	assert.NotZero(t, cfg.Jobs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, android.DefaultManifestURL, cfg.ManifestURL)
	require.NotNil(t, cfg.CompressCache)
	assert.True(t, *cfg.CompressCache)
	assert.Empty(t, cfg.BlueprintRoots())
}

func TestEnvInterpolation(t *testing.T) {
	t.Setenv("GROMET_TEST_OUT", "/env/out")
	cfg, err := Load(writeConfig(t, `output_dir = env.GROMET_TEST_OUT`))
	require.NoError(t, err)
	assert.Equal(t, "/env/out", cfg.OutputDir)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, `log_level = "verbose"`))
	assert.ErrorContains(t, err, "invalid log_level")

	_, err = Load(writeConfig(t, `log_format = "xml"`))
	assert.ErrorContains(t, err, "invalid log_format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}
