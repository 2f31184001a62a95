package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driveput/driveput/internal/auth"
	"github.com/driveput/driveput/internal/config"
	"github.com/driveput/driveput/internal/drive"
	"github.com/driveput/driveput/internal/engine"
	"github.com/driveput/driveput/internal/history"
)

// errUploadsFailed signals a run whose report was printed but included
// failed tasks. main() turns it into a bare non-zero exit, without the
// generic error banner.
var errUploadsFailed = errors.New("some uploads failed")

var (
	flagFolder          string
	flagArchive         bool
	flagCreateParent    bool
	flagPreserveSubdirs bool
	flagShare           string
	flagWorkers         int
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Upload a file or directory to Google Drive",
		Long: "Upload a file or directory to Google Drive and print a plain-text report to\n" +
			"stdout. Directories upload file by file, or as a single zip with --archive.",
		Args: cobra.ExactArgs(1),
		RunE: runPut,
	}

	cmd.Flags().StringVar(&flagFolder, "folder", "", "destination folder ID (default: config, then Drive root)")
	cmd.Flags().BoolVar(&flagArchive, "archive", false, "bundle a directory into one zip before uploading")
	cmd.Flags().BoolVar(&flagCreateParent, "create-parent", false, "create a folder named after the source and upload into it")
	cmd.Flags().BoolVar(&flagPreserveSubdirs, "preserve-subdirs", false, "mirror the local directory tree remotely")
	cmd.Flags().StringVar(&flagShare, "share", "", "email granted reader access after upload")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel uploads (default: config)")
	addCredentialFlags(cmd)

	return cmd
}

func runPut(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := buildRequest(args[0])

	workers := resolvedCfg.UploadWorkers
	if cmd.Flags().Changed("workers") {
		workers = flagWorkers
	}

	eng := &engine.Engine{
		Authorize: func(ctx context.Context) (engine.RemoteAPI, error) {
			return authorize(ctx, logger)
		},
		Workers: workers,
		Logger:  logger,
	}

	statusf("Uploading %s...\n", req.LocalPath)

	started := time.Now()

	report, err := eng.Run(ctx, req)
	if err != nil {
		return err
	}

	// The report on stdout is the machine-readable result a pipeline host
	// captures; everything else stays on stderr.
	fmt.Fprint(cmd.OutOrStdout(), report.String())

	recordHistory(ctx, logger, req, report, started)

	if report.Failed() > 0 {
		return errUploadsFailed
	}

	return nil
}

// buildRequest merges flags and config into one engine request. Flags win
// over config for every overlapping knob.
func buildRequest(localPath string) engine.Request {
	req := engine.Request{
		LocalPath:          localPath,
		ParentFolderID:     resolvedCfg.ParentFolderID,
		Archive:            flagArchive,
		CreateParentFolder: flagCreateParent,
		PreserveSubdirs:    flagPreserveSubdirs,
		ShareWith:          resolvedCfg.ShareWith,
	}

	if flagFolder != "" {
		req.ParentFolderID = flagFolder
	}

	if flagShare != "" {
		req.ShareWith = flagShare
	}

	return req
}

// authorize resolves credentials and wraps them in a Drive client.
func authorize(ctx context.Context, logger *slog.Logger) (engine.RemoteAPI, error) {
	opts, err := credentialOptions(logger)
	if err != nil {
		return nil, err
	}

	opts.Logger = logger

	source, err := auth.Credentials(ctx, opts)
	if err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			return nil, fmt.Errorf("not logged in — run 'driveput login' first")
		}

		return nil, err
	}

	return drive.NewClient("", "", defaultHTTPClient(), auth.Bearer{Source: source}, logger), nil
}

// recordHistory writes the run into the local ledger. Best-effort: a ledger
// problem is logged and never fails the upload that produced it.
func recordHistory(
	ctx context.Context, logger *slog.Logger,
	req engine.Request, report *engine.Report, started time.Time,
) {
	store, err := history.Open(ctx, config.HistoryDBPath(), logger)
	if err != nil {
		logger.Warn("history unavailable", "error", err.Error())

		return
	}
	defer store.Close()

	mode := "file"

	switch {
	case report.Archived:
		mode = "archive"
	case len(report.Results) > 1 || flagPreserveSubdirs:
		mode = "directory"
	}

	tasks := make([]history.TaskRecord, 0, len(report.Results))

	for _, res := range report.Results {
		rec := history.TaskRecord{
			Name:        res.Task.Name,
			RemoteID:    res.RemoteID,
			WebViewLink: res.WebViewLink,
			SizeBytes:   res.Task.Size,
			Attempts:    res.Attempts,
			Status:      history.StatusUploaded,
		}

		switch {
		case res.Err != nil:
			rec.Status = history.StatusFailed
			rec.Error = res.Err.Error()
		case res.ShareErr != nil:
			rec.Status = history.StatusPartial
			rec.Error = res.ShareErr.Error()
		}

		tasks = append(tasks, rec)
	}

	_, err = store.Record(ctx, history.Invocation{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Source:     req.LocalPath,
		Mode:       mode,
		Succeeded:  report.Succeeded(),
		Failed:     report.Failed(),
	}, tasks)
	if err != nil {
		logger.Warn("recording history", "error", err.Error())
	}
}
