package auth

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/driveput/driveput/internal/tokenfile"
)

// sequenceSource returns tokens from a list, one per call, repeating the last.
type sequenceSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	i := s.calls
	if i >= len(s.tokens) {
		i = len(s.tokens) - 1
	}

	s.calls++

	return s.tokens[i], nil
}

func TestPersistingSourceSavesNewTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	meta := map[string]string{tokenfile.MetaSource: "oauth"}

	fresh := &oauth2.Token{
		AccessToken: "fresh-access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}

	ps := newPersistingSource(&sequenceSource{tokens: []*oauth2.Token{fresh}}, path, meta, nil, slog.Default())

	tok, err := ps.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)

	saved, savedMeta, err := tokenfile.Load(path)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "fresh-access", saved.AccessToken)
	assert.Equal(t, "oauth", savedMeta[tokenfile.MetaSource])
}

func TestPersistingSourceSkipsUnchangedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	same := &oauth2.Token{
		AccessToken: "same-access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}

	ps := newPersistingSource(&sequenceSource{tokens: []*oauth2.Token{same}}, path, nil, same, slog.Default())

	_, err := ps.Token()
	require.NoError(t, err)

	// The token matched what was already on disk, so nothing was written.
	saved, _, err := tokenfile.Load(path)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestBearerAdapter(t *testing.T) {
	b := Bearer{Source: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "abc",
		Expiry:      time.Now().Add(time.Hour),
	})}

	tok, err := b.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
