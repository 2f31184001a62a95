package auth

import (
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/driveput/driveput/internal/tokenfile"
)

// persistingSource wraps an oauth2.TokenSource and writes every new token to
// the credential file, so silent refreshes during a long batch survive the
// process. Safe for concurrent use by parallel upload workers.
type persistingSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	path   string
	meta   map[string]string
	last   string // access token already persisted
	logger *slog.Logger
}

// newPersistingSource wraps src. lastSaved is the token already on disk (may
// be nil) — only tokens that differ from it trigger a write.
func newPersistingSource(
	src oauth2.TokenSource, path string, meta map[string]string,
	lastSaved *oauth2.Token, logger *slog.Logger,
) *persistingSource {
	ps := &persistingSource{
		src:    oauth2.ReuseTokenSource(nil, src),
		path:   path,
		meta:   meta,
		logger: logger,
	}

	if lastSaved != nil {
		ps.last = lastSaved.AccessToken
	}

	return ps
}

// Token returns a valid token, persisting it if the underlying source
// refreshed. Persistence failures are logged, never fatal — the in-memory
// token still works for the rest of the invocation.
func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	if tok.AccessToken != p.last {
		p.logger.Info("token refreshed, persisting",
			slog.Time("new_expiry", tok.Expiry),
		)

		if saveErr := tokenfile.Save(p.path, tok, p.meta); saveErr != nil {
			p.logger.Warn("failed to persist refreshed token",
				slog.String("error", saveErr.Error()),
			)
		} else {
			p.last = tok.AccessToken
		}
	}

	return tok, nil
}

// Bearer adapts an oauth2.TokenSource to the drive.TokenSource interface,
// which wants the bare access token string.
type Bearer struct {
	Source oauth2.TokenSource
}

func (b Bearer) Token() (string, error) {
	tok, err := b.Source.Token()
	if err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}
