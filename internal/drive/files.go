package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// listPageSize is the pageSize value for files.list requests.
const listPageSize = 100

// escapeQueryTerm escapes a string literal for use inside a Drive v3 search
// query. Backslashes and single quotes are the only special characters.
func escapeQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}

// jsonBody returns a bodyFn that marshals v afresh on each retry attempt.
func jsonBody(v any) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("drive: marshaling request: %w", err)
		}

		return bytes.NewReader(data), nil
	}
}

// FindFolders returns the non-trashed child folders of parentID whose name
// equals name, in the order the API returns them. An empty slice means no
// match. Drive permits duplicate-named siblings, so more than one result is
// possible — callers decide the tie-break.
func (c *Client) FindFolders(ctx context.Context, parentID, name string) ([]File, error) {
	c.logger.Debug("searching for folder",
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQueryTerm(name), escapeQueryTerm(parentID), FolderMimeType)

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name,mimeType)")
	params.Set("pageSize", strconv.Itoa(listPageSize))

	resp, err := c.do(ctx, http.MethodGet, "/files?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list fileListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&list); decErr != nil {
		return nil, fmt.Errorf("drive: decoding folder search response: %w", decErr)
	}

	files := make([]File, 0, len(list.Files))
	for i := range list.Files {
		files = append(files, list.Files[i].toFile(c.logger))
	}

	return files, nil
}

// CreateFolder creates a folder named name under parentID and returns it.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*File, error) {
	c.logger.Info("creating folder",
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	reqBody := createFileRequest{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}

	resp, err := c.do(ctx, http.MethodPost, "/files?fields=id,name,mimeType", jsonBody(reqBody))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var fr fileResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&fr); decErr != nil {
		return nil, fmt.Errorf("drive: decoding create folder response: %w", decErr)
	}

	folder := fr.toFile(c.logger)

	return &folder, nil
}

// Share grants email reader access to the file. One permissions.create call;
// notification emails are suppressed.
func (c *Client) Share(ctx context.Context, fileID, email string) error {
	c.logger.Info("granting reader access",
		slog.String("file_id", fileID),
		slog.String("email", email),
	)

	reqBody := createPermissionRequest{
		Role:         "reader",
		Type:         "user",
		EmailAddress: email,
	}

	path := fmt.Sprintf("/files/%s/permissions?sendNotificationEmail=false", url.PathEscape(fileID))

	resp, err := c.do(ctx, http.MethodPost, path, jsonBody(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain body to reuse the connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("drive: draining permission response body: %w", drainErr)
	}

	return nil
}

// GetAbout returns information about the authenticated user and their quota.
func (c *Client) GetAbout(ctx context.Context) (*About, error) {
	resp, err := c.do(ctx, http.MethodGet, "/about?fields=user(displayName,emailAddress),storageQuota", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ar aboutResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&ar); decErr != nil {
		return nil, fmt.Errorf("drive: decoding about response: %w", decErr)
	}

	about := &About{
		DisplayName:  ar.User.DisplayName,
		EmailAddress: ar.User.EmailAddress,
	}

	if n, err := strconv.ParseInt(ar.StorageQuota.Usage, 10, 64); err == nil {
		about.QuotaUsed = n
	}

	if n, err := strconv.ParseInt(ar.StorageQuota.Limit, 10, 64); err == nil {
		about.QuotaLimit = n
	}

	return about, nil
}
