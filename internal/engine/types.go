// Package engine orchestrates one-shot uploads: it resolves credentials,
// maps the local tree onto remote folders, optionally bundles directories
// into an archive, executes the transfers with bounded parallelism, and
// renders a plain-text report for the invoking host.
package engine

import (
	"context"
	"io"

	"github.com/driveput/driveput/internal/drive"
)

// Request carries one invocation's inputs from the host.
type Request struct {
	// LocalPath is the file or directory to upload. Required.
	LocalPath string
	// ParentFolderID is the remote destination. Empty means the Drive root.
	ParentFolderID string
	// Archive bundles a directory into a single zip before upload.
	Archive bool
	// CreateParentFolder uploads into a folder named after the source
	// instead of directly into the destination.
	CreateParentFolder bool
	// PreserveSubdirs mirrors nested local directories remotely in per-file
	// mode. When false, every file lands directly in the destination.
	PreserveSubdirs bool
	// ShareWith optionally grants this email reader access after each upload.
	ShareWith string
}

// Task is one file transfer. Immutable once constructed; exactly one per
// file actually transferred.
type Task struct {
	// SourcePath is the local file; in archive mode, the staged zip.
	SourcePath string
	// Name is the remote display name.
	Name string
	// FolderID is the resolved destination folder.
	FolderID string
	// ShareWith optionally grants reader access after upload.
	ShareWith string
	// Size is the content length in bytes.
	Size int64
}

// Result is the outcome of executing one Task.
type Result struct {
	Task Task
	// RemoteID is set on success.
	RemoteID string
	// WebViewLink is the browser URL of the uploaded file, when returned.
	WebViewLink string
	// Err is the terminal failure, nil on success.
	Err error
	// Attempts is how many upload attempts were actually made.
	Attempts int
	// ShareErr is a post-upload sharing failure. The upload itself stands;
	// this only downgrades the report line to partial success.
	ShareErr error
}

// RemoteAPI is the slice of the Drive client the engine needs. Defined at
// the consumer so tests can substitute a fake.
type RemoteAPI interface {
	FindFolders(ctx context.Context, parentID, name string) ([]drive.File, error)
	CreateFolder(ctx context.Context, parentID, name string) (*drive.File, error)
	Upload(ctx context.Context, parentID, name, mimeType string, r io.Reader, size int64) (*drive.File, error)
	Share(ctx context.Context, fileID, email string) error
}
