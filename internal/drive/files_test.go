package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFoldersBuildsQuery(t *testing.T) {
	var gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(fileListResponse{Files: []fileResponse{
			{ID: "f1", Name: "renders", MimeType: FolderMimeType},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	folders, err := c.FindFolders(context.Background(), "parent123", "renders")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "f1", folders[0].ID)
	assert.True(t, folders[0].IsFolder)

	assert.Equal(t,
		"name = 'renders' and 'parent123' in parents and "+
			"mimeType = 'application/vnd.google-apps.folder' and trashed = false",
		gotQuery)
}

func TestFindFoldersEscapesName(t *testing.T) {
	var gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(fileListResponse{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	folders, err := c.FindFolders(context.Background(), "root", `it's a \trap`)
	require.NoError(t, err)
	assert.Empty(t, folders)
	assert.Contains(t, gotQuery, `name = 'it\'s a \\trap'`)
}

func TestCreateFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req createFileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "newdir", req.Name)
		assert.Equal(t, FolderMimeType, req.MimeType)
		assert.Equal(t, []string{"parentX"}, req.Parents)

		_ = json.NewEncoder(w).Encode(fileResponse{ID: "created1", Name: "newdir", MimeType: FolderMimeType})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	folder, err := c.CreateFolder(context.Background(), "parentX", "newdir")
	require.NoError(t, err)
	assert.Equal(t, "created1", folder.ID)
	assert.True(t, folder.IsFolder)
}

func TestShare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/file9/permissions", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("sendNotificationEmail"))

		var req createPermissionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "reader", req.Role)
		assert.Equal(t, "user", req.Type)
		assert.Equal(t, "viewer@example.com", req.EmailAddress)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"perm1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	require.NoError(t, c.Share(context.Background(), "file9", "viewer@example.com"))
}

func TestGetAbout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"displayName":"Test User","emailAddress":"t@example.com"},` +
			`"storageQuota":{"usage":"1024","limit":"2048"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	about, err := c.GetAbout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test User", about.DisplayName)
	assert.Equal(t, int64(1024), about.QuotaUsed)
	assert.Equal(t, int64(2048), about.QuotaLimit)
}

func TestFileSizeNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(fileListResponse{Files: []fileResponse{
			{ID: "a", Name: "x", Size: "4096"},
			{ID: "b", Name: "y", Size: "not-a-number"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	files, err := c.FindFolders(context.Background(), "root", "x")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int64(4096), files[0].Size)
	assert.Zero(t, files[1].Size)
}
