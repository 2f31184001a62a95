// Package auth obtains Drive API credentials. It resolves the authorization
// source once per invocation (cached token, interactive OAuth client, or
// pre-provisioned service account), drives the interactive consent flow when
// needed, and hands every resulting token to the credential file.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/driveput/driveput/internal/tokenfile"
)

// DriveScope grants full Drive access, matching what folder creation and
// cross-folder uploads require.
const DriveScope = "https://www.googleapis.com/auth/drive"

// Sentinel errors surfaced to the command and engine layers.
var (
	ErrNotLoggedIn   = errors.New("auth: not logged in and no client descriptor supplied")
	ErrConsentDenied = errors.New("auth: authorization was denied")
	ErrBadDescriptor = errors.New("auth: malformed credential descriptor")
)

// SourceKind identifies which authorization source is active for an
// invocation. Exactly one is chosen, once, before any network call.
type SourceKind int

const (
	// SourceCached relies on the persisted token alone.
	SourceCached SourceKind = iota
	// SourceOAuthClient uses an interactive consent flow with a client descriptor.
	SourceOAuthClient
	// SourceServiceAccount signs token requests with a static service key.
	SourceServiceAccount
)

// Source metadata values persisted in the credential file.
const (
	sourceOAuth          = "oauth"
	sourceServiceAccount = "service_account"
)

// Options configures credential resolution for one invocation.
type Options struct {
	// TokenPath is the credential file location (config.TokenPath()).
	TokenPath string
	// ClientJSON is an OAuth installed-app client descriptor, when supplied.
	ClientJSON string
	// ServiceKeyJSON is a service-account key descriptor, when supplied.
	ServiceKeyJSON string
	// OpenURL launches the consent URL in a browser. Required for the
	// interactive flow; the CLI passes a platform-specific opener.
	OpenURL func(string) error
	// Logger receives flow progress. Required.
	Logger *slog.Logger
}

// resolveSource picks the active authorization source: explicit inputs win
// (service key over client descriptor when both are present), then whatever
// the credential file recorded from a previous run.
func resolveSource(opts *Options, meta map[string]string) (SourceKind, string) {
	if strings.TrimSpace(opts.ServiceKeyJSON) != "" {
		return SourceServiceAccount, opts.ServiceKeyJSON
	}

	if strings.TrimSpace(opts.ClientJSON) != "" {
		return SourceOAuthClient, opts.ClientJSON
	}

	switch meta[tokenfile.MetaSource] {
	case sourceServiceAccount:
		return SourceServiceAccount, meta[tokenfile.MetaClient]
	case sourceOAuth:
		if meta[tokenfile.MetaClient] != "" {
			return SourceOAuthClient, meta[tokenfile.MetaClient]
		}
	}

	return SourceCached, ""
}

// Credentials resolves a TokenSource for the invocation:
//
//   - a cached unexpired token is used as-is, no network call
//   - a cached expired token with refresh capability is refreshed silently;
//     a permanently rejected refresh clears the store and falls through to a
//     fresh flow instead of looping
//   - otherwise the resolved source runs its flow (interactive consent or
//     service-account signing)
//
// Every token the source produces afterward is persisted on change, so
// silent refreshes during long uploads survive into the next run.
func Credentials(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cached, meta, err := tokenfile.Load(opts.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("auth: loading saved credential: %w", err)
	}

	kind, descriptor := resolveSource(&opts, meta)

	switch kind {
	case SourceServiceAccount:
		return serviceAccountSource(ctx, opts.TokenPath, descriptor, cached, logger)
	case SourceOAuthClient:
		return oauthClientSource(ctx, &opts, descriptor, cached, logger)
	default:
		return cachedOnlySource(ctx, opts.TokenPath, cached, logger)
	}
}

// cachedOnlySource handles invocations with no descriptor anywhere: the saved
// token must carry the flow on its own. Refresh is impossible without a
// client, so an expired token without a descriptor means re-login.
func cachedOnlySource(_ context.Context, tokenPath string, cached *oauth2.Token, logger *slog.Logger) (oauth2.TokenSource, error) {
	if cached == nil {
		return nil, ErrNotLoggedIn
	}

	if !cached.Valid() {
		logger.Warn("saved token expired and no client descriptor available for refresh")

		if err := tokenfile.Clear(tokenPath); err != nil {
			logger.Warn("clearing stale credential failed", slog.String("error", err.Error()))
		}

		return nil, ErrNotLoggedIn
	}

	logger.Debug("using cached token", slog.Time("expiry", cached.Expiry))

	return oauth2.StaticTokenSource(cached), nil
}

// serviceAccountSource builds a JWT-signing token source from a static key
// descriptor. A malformed key fails immediately, before any network call.
func serviceAccountSource(
	ctx context.Context, tokenPath, keyJSON string, cached *oauth2.Token, logger *slog.Logger,
) (oauth2.TokenSource, error) {
	if strings.TrimSpace(keyJSON) == "" {
		return nil, ErrNotLoggedIn
	}

	jwtCfg, err := google.JWTConfigFromJSON([]byte(keyJSON), DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}

	logger.Info("using service account identity",
		slog.String("client_email", jwtCfg.Email),
	)

	src := jwtCfg.TokenSource(ctx)

	// A still-valid cached token short-circuits re-signing.
	if cached != nil && cached.Valid() {
		src = oauth2.ReuseTokenSource(cached, src)
	}

	meta := map[string]string{
		tokenfile.MetaSource: sourceServiceAccount,
		tokenfile.MetaClient: keyJSON,
	}

	return newPersistingSource(src, tokenPath, meta, cached, logger), nil
}

// oauthClientSource covers the interactive source: cached-token fast path,
// silent refresh, and fallback to the consent flow when refresh is rejected.
func oauthClientSource(
	ctx context.Context, opts *Options, clientJSON string, cached *oauth2.Token, logger *slog.Logger,
) (oauth2.TokenSource, error) {
	cfg, err := google.ConfigFromJSON([]byte(clientJSON), DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}

	meta := map[string]string{
		tokenfile.MetaSource: sourceOAuth,
		tokenfile.MetaClient: clientJSON,
	}

	if cached != nil {
		src := cfg.TokenSource(ctx, cached)

		if cached.Valid() {
			logger.Debug("using cached token", slog.Time("expiry", cached.Expiry))

			return newPersistingSource(src, opts.TokenPath, meta, cached, logger), nil
		}

		if cached.RefreshToken != "" {
			logger.Info("cached token expired, attempting silent refresh")

			refreshed, refreshErr := src.Token()
			if refreshErr == nil {
				if saveErr := tokenfile.Save(opts.TokenPath, refreshed, meta); saveErr != nil {
					logger.Warn("persisting refreshed token failed", slog.String("error", saveErr.Error()))
				}

				return newPersistingSource(src, opts.TokenPath, meta, refreshed, logger), nil
			}

			if !refreshRejected(refreshErr) {
				return nil, fmt.Errorf("auth: token refresh failed: %w", refreshErr)
			}

			// Revoked or expired refresh token: clear and fall through to
			// a fresh consent flow rather than retrying a dead grant.
			logger.Warn("refresh token rejected, clearing saved credential",
				slog.String("error", refreshErr.Error()),
			)

			if clearErr := tokenfile.Clear(opts.TokenPath); clearErr != nil {
				logger.Warn("clearing credential failed", slog.String("error", clearErr.Error()))
			}
		}
	}

	tok, err := consentFlow(ctx, cfg, opts.OpenURL, logger)
	if err != nil {
		return nil, err
	}

	if saveErr := tokenfile.Save(opts.TokenPath, tok, meta); saveErr != nil {
		return nil, fmt.Errorf("auth: saving token: %w", saveErr)
	}

	logger.Info("authorization successful", slog.Time("expiry", tok.Expiry))

	return newPersistingSource(cfg.TokenSource(ctx, tok), opts.TokenPath, meta, tok, logger), nil
}

// refreshRejected reports whether a refresh failure is permanent (revoked or
// expired grant) as opposed to a transient network problem.
func refreshRejected(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.ErrorCode == "invalid_grant" || re.Response.StatusCode == 400 || re.Response.StatusCode == 401
	}

	return false
}
