package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/driveput/driveput/internal/archive"
	"github.com/driveput/driveput/internal/drive"
)

// Engine orchestrates a full upload invocation: credential resolution,
// source enumeration, optional archiving, remote folder resolution,
// execution and report assembly.
type Engine struct {
	// Authorize resolves credentials and returns a ready remote client.
	// It is called once per Run, before any local work, so credential
	// failures surface before files are touched.
	Authorize func(ctx context.Context) (RemoteAPI, error)

	// Workers bounds upload concurrency. Values below 1 mean sequential.
	Workers int

	Logger *slog.Logger
}

// Run performs one upload invocation. Invocation-fatal conditions
// (credentials, unreadable source, bad request) return an error and no
// report; once tasks are dispatched, failures are per-task and the report
// is always returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	api, err := e.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if req.Archive && !info.IsDir() {
		return nil, fmt.Errorf("%w: archive mode requires a directory, got file %s", ErrConfig, req.LocalPath)
	}

	baseID := req.ParentFolderID
	if baseID == "" {
		baseID = drive.RootFolderID
	}

	res := newResolver(api, baseID, logger)

	if req.CreateParentFolder {
		name := parentFolderName(req.LocalPath, info.IsDir())

		id, err := res.findOrCreate(ctx, baseID, name)
		if err != nil {
			return nil, err
		}

		res = newResolver(api, id, logger)
	}

	tasks, staged, err := e.buildTasks(ctx, req, info, res, logger)
	if err != nil {
		return nil, err
	}

	if staged != "" {
		defer func() {
			if removeErr := os.Remove(staged); removeErr != nil {
				logger.Warn("removing staged archive", slog.String("path", staged), slog.String("error", removeErr.Error()))
			}
		}()
	}

	exec := newExecutor(api, e.Workers, logger)
	results := exec.executeAll(ctx, tasks)

	return &Report{Results: results, Archived: req.Archive}, nil
}

// buildTasks enumerates the source into upload tasks. For archive mode it
// returns the staged archive path so the caller can clean it up after the
// upload completes or fails.
func (e *Engine) buildTasks(ctx context.Context, req Request, info fs.FileInfo, res *resolver, logger *slog.Logger) ([]Task, string, error) {
	switch {
	case !info.IsDir():
		task, err := e.fileTask(ctx, req, req.LocalPath, "", res)
		if err != nil {
			return nil, "", err
		}

		return []Task{task}, "", nil

	case req.Archive:
		staged, name, err := archive.New(logger).Build(req.LocalPath)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrIO, err)
		}

		stat, err := os.Stat(staged)
		if err != nil {
			_ = os.Remove(staged) //nolint:errcheck // already failing, best effort

			return nil, "", fmt.Errorf("%w: %w", ErrIO, err)
		}

		id, err := res.resolve(ctx, ".")
		if err != nil {
			_ = os.Remove(staged) //nolint:errcheck // already failing, best effort

			return nil, "", err
		}

		task := Task{
			SourcePath: staged,
			Name:       name,
			FolderID:   id,
			ShareWith:  req.ShareWith,
			Size:       stat.Size(),
		}

		return []Task{task}, staged, nil

	default:
		tasks, err := e.directoryTasks(ctx, req, res)

		return tasks, "", err
	}
}

// fileTask builds a task for a single regular file placed under the remote
// directory identified by rel (relative to the resolver base).
func (e *Engine) fileTask(ctx context.Context, req Request, path, rel string, res *resolver) (Task, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if !stat.Mode().IsRegular() {
		return Task{}, fmt.Errorf("%w: %s is not a regular file", ErrIO, path)
	}

	id, err := res.resolve(ctx, rel)
	if err != nil {
		return Task{}, err
	}

	return Task{
		SourcePath: path,
		Name:       norm.NFC.String(filepath.Base(path)),
		FolderID:   id,
		ShareWith:  req.ShareWith,
		Size:       stat.Size(),
	}, nil
}

// directoryTasks enumerates a directory tree into per-file tasks. With
// PreserveSubdirs each file lands under a mirrored remote folder; otherwise
// the tree is flattened into the base folder. Symlinks and other non-regular
// entries are skipped with a log line.
func (e *Engine) directoryTasks(ctx context.Context, req Request, res *resolver) ([]Task, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var paths []string

	err := filepath.WalkDir(req.LocalPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !d.Type().IsRegular() {
			logger.Debug("skipping non-regular file", slog.String("path", path))

			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking %s: %w", ErrIO, req.LocalPath, err)
	}

	sort.Strings(paths)

	tasks := make([]Task, 0, len(paths))

	for _, path := range paths {
		rel := ""

		if req.PreserveSubdirs {
			relPath, err := filepath.Rel(req.LocalPath, path)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}

			rel = filepath.ToSlash(filepath.Dir(relPath))
		}

		task, err := e.fileTask(ctx, req, path, rel, res)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// parentFolderName derives the remote folder name for create-parent mode:
// the directory name for a directory source, the base name without its
// extension for a single file.
func parentFolderName(path string, isDir bool) string {
	base := filepath.Base(filepath.Clean(path))
	if isDir {
		return base
	}

	return strings.TrimSuffix(base, filepath.Ext(base))
}
