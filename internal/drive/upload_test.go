package drive

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadMultipartSmallFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/related", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])

		metaPart, err := mr.NextPart()
		require.NoError(t, err)
		metaJSON, err := io.ReadAll(metaPart)
		require.NoError(t, err)
		assert.Contains(t, string(metaJSON), `"name":"img.png"`)
		assert.Contains(t, string(metaJSON), `"parents":["dest1"]`)

		contentPart, err := mr.NextPart()
		require.NoError(t, err)
		content, err := io.ReadAll(contentPart)
		require.NoError(t, err)
		assert.Equal(t, "pixels", string(content))

		_, _ = w.Write([]byte(`{"id":"up1","name":"img.png","size":"6","webViewLink":"https://drive/up1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	f, err := c.Upload(context.Background(), "dest1", "img.png", "image/png",
		strings.NewReader("pixels"), 6)
	require.NoError(t, err)
	assert.Equal(t, "up1", f.ID)
	assert.Equal(t, int64(6), f.Size)
	assert.Equal(t, "https://drive/up1", f.WebViewLink)
}

func TestUploadResumableLargeFile(t *testing.T) {
	content := strings.Repeat("x", 64)

	var mux http.ServeMux

	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "64", r.Header.Get("X-Upload-Content-Length"))

		w.Header().Set("Location", srv.URL+"/session/abc")
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("PUT /session/abc", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, content, string(body))
		assert.Equal(t, int64(64), r.ContentLength)

		_, _ = w.Write([]byte(`{"id":"big1","name":"big.bin","size":"64"}`))
	})

	c := newTestClient(t, srv.URL)

	// Force the resumable path regardless of the multipart threshold.
	f, err := c.uploadResumable(context.Background(), "dest1", "big.bin",
		"application/octet-stream", strings.NewReader(content), 64)
	require.NoError(t, err)
	assert.Equal(t, "big1", f.ID)
}

func TestUploadResumableMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.uploadResumable(context.Background(), "dest1", "big.bin", "",
		strings.NewReader("data"), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestUploadSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The user's Drive storage quota has been exceeded.",` +
			`"errors":[{"reason":"storageQuotaExceeded"}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Upload(context.Background(), "dest1", "img.png", "image/png",
		strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuota)
	assert.False(t, IsTransient(err))
}
