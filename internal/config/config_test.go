package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultUploadWorkers, cfg.UploadWorkers)
	assert.Empty(t, cfg.ParentFolderID)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"parent_folder_id = \"abc123\"\nlog_level = \"debug\"\nupload_workers = 2\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.ParentFolderID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.UploadWorkers)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("parent_folder_id = \"from-file\"\n"), 0o600))

	t.Setenv(EnvParentFolder, "from-env")
	t.Setenv(EnvWorkers, "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ParentFolderID)
	assert.Equal(t, 4, cfg.UploadWorkers)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	t.Setenv(EnvLogLevel, "info")
	t.Setenv(EnvWorkers, "99")

	_, err = Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_workers")
}

func TestPathsAreUserScoped(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	tp := TokenPath()
	require.NotEmpty(t, tp)
	assert.Equal(t, "token.json", filepath.Base(tp))

	hp := HistoryDBPath()
	require.NotEmpty(t, hp)
	assert.Equal(t, "history.db", filepath.Base(hp))
}
