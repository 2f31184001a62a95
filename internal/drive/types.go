package drive

import (
	"log/slog"
	"strconv"
)

// FolderMimeType marks a Drive file object as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootFolderID is the alias Drive accepts for the top-level "My Drive" folder.
const RootFolderID = "root"

// File represents a Drive file or folder, normalized from the v3 API
// response — callers never see raw API data.
type File struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	WebViewLink string
	IsFolder    bool
}

// fileResponse mirrors the Drive v3 files resource JSON exactly.
// Unexported — callers use File via toFile() normalization.
// Size is a string in the wire format, not a number.
type fileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        string `json:"size"`
	WebViewLink string `json:"webViewLink"`
	Trashed     bool   `json:"trashed"`
}

type fileListResponse struct {
	Files         []fileResponse `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

type createFileRequest struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

type createPermissionRequest struct {
	Role         string `json:"role"`
	Type         string `json:"type"`
	EmailAddress string `json:"emailAddress"`
}

// About describes the authenticated user, from the about endpoint.
type About struct {
	DisplayName  string
	EmailAddress string
	QuotaUsed    int64
	QuotaLimit   int64
}

type aboutResponse struct {
	User struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
	StorageQuota struct {
		Usage string `json:"usage"`
		Limit string `json:"limit"`
	} `json:"storageQuota"`
}

// toFile normalizes a Drive v3 files resource into our File type.
func (f *fileResponse) toFile(logger *slog.Logger) File {
	out := File{
		ID:          f.ID,
		Name:        f.Name,
		MimeType:    f.MimeType,
		WebViewLink: f.WebViewLink,
		IsFolder:    f.MimeType == FolderMimeType,
	}

	if f.Size != "" {
		n, err := strconv.ParseInt(f.Size, 10, 64)
		if err != nil {
			logger.Warn("unparseable size in file resource",
				slog.String("file_id", f.ID),
				slog.String("raw", f.Size),
			)
		} else {
			out.Size = n
		}
	}

	return out
}
