package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "token.json")
	meta := map[string]string{MetaSource: "oauth", MetaClient: `{"installed":{}}`}

	require.NoError(t, Save(path, testToken(), meta))

	tok, gotMeta, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "access-abc", tok.AccessToken)
	assert.Equal(t, "refresh-xyz", tok.RefreshToken)
	assert.Equal(t, meta, gotMeta)
}

func TestLoadMissingFileIsAbsent(t *testing.T) {
	tok, meta, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, tok)
	assert.Nil(t, meta)
}

func TestLoadCorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	tok, meta, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, tok)
	assert.Nil(t, meta)
}

func TestLoadMissingTokenFieldIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"meta":{"source":"oauth"}}`), 0o600))

	tok, _, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testToken(), nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, testToken(), nil))

	second := testToken()
	second.AccessToken = "access-2"
	require.NoError(t, Save(path, second, nil))

	tok, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testToken(), nil))
	require.NoError(t, Clear(path))

	tok, _, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, tok)

	// Clearing again is a no-op.
	require.NoError(t, Clear(path))
}

func TestSaveWithMetaMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testToken(), map[string]string{MetaSource: "oauth", "extra": "keep"}))

	require.NoError(t, SaveWithMeta(path, testToken(), map[string]string{MetaSource: "service_account"}))

	_, meta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "service_account", meta[MetaSource])
	assert.Equal(t, "keep", meta["extra"])
}
