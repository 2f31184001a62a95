package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// resolver maps local subpaths onto remote folder IDs, creating only what is
// missing and reusing what exists. The cache is invocation-scoped and never
// persisted: remote folder IDs are not stable enough across runs to reuse
// without re-querying.
type resolver struct {
	api    RemoteAPI
	baseID string
	cache  map[string]string // cleaned slash-path relative to base -> folder ID
	logger *slog.Logger
}

func newResolver(api RemoteAPI, baseID string, logger *slog.Logger) *resolver {
	return &resolver{
		api:    api,
		baseID: baseID,
		cache:  map[string]string{"": baseID, ".": baseID},
		logger: logger,
	}
}

// resolve returns the remote folder for rel, a slash-separated path relative
// to the invocation base. Ancestors are resolved segment by segment, in
// order, so nested paths create each missing level exactly once. Every
// resolved level is cached — repeat lookups for a subpath or its ancestors
// issue zero API calls.
func (r *resolver) resolve(ctx context.Context, rel string) (string, error) {
	rel = path.Clean(strings.Trim(rel, "/"))
	if rel == "" || rel == "." {
		return r.baseID, nil
	}

	if id, ok := r.cache[rel]; ok {
		return id, nil
	}

	parentID := r.baseID
	prefix := ""

	for _, seg := range strings.Split(rel, "/") {
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "/" + seg
		}

		if id, ok := r.cache[prefix]; ok {
			parentID = id

			continue
		}

		id, err := r.findOrCreate(ctx, parentID, seg)
		if err != nil {
			return "", err
		}

		r.cache[prefix] = id
		parentID = id
	}

	return parentID, nil
}

// findOrCreate is the idempotent upsert for a single folder level. Names are
// NFC-normalized before comparison and creation so the same directory entered
// with different Unicode compositions lands in one remote folder.
func (r *resolver) findOrCreate(ctx context.Context, parentID, name string) (string, error) {
	name = norm.NFC.String(name)

	found, err := r.api.FindFolders(ctx, parentID, name)
	if err != nil {
		return "", fmt.Errorf("%w: searching for folder %q: %w", ErrRemote, name, err)
	}

	if len(found) > 0 {
		// Drive permits duplicate-named siblings; use the first match
		// deterministically and leave a diagnostic.
		if len(found) > 1 {
			r.logger.Warn("multiple remote folders share a name, using first",
				slog.String("name", name),
				slog.String("parent_id", parentID),
				slog.Int("matches", len(found)),
				slog.String("chosen_id", found[0].ID),
			)
		}

		r.logger.Debug("reusing remote folder",
			slog.String("name", name),
			slog.String("folder_id", found[0].ID),
		)

		return found[0].ID, nil
	}

	created, err := r.api.CreateFolder(ctx, parentID, name)
	if err != nil {
		return "", fmt.Errorf("%w: creating folder %q: %w", ErrRemote, name, err)
	}

	return created.ID, nil
}
