package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// multipartMaxSize is the largest content the multipart endpoint accepts (5 MB).
// Larger files must use a resumable session, which also avoids buffering the
// content in memory.
const multipartMaxSize = 5 * 1024 * 1024

// uploadFields is the partial-response selector for upload calls.
const uploadFields = "id,name,mimeType,size,webViewLink"

// Upload transfers one file into parentID, choosing multipart for small
// content and a resumable session for anything larger. size must be the exact
// content length; large files are streamed from r, never buffered whole.
//
// No retry happens at this layer — r may be partially consumed on failure, so
// the caller re-opens the source and calls again. This keeps upload attempt
// accounting in exactly one place.
func (c *Client) Upload(
	ctx context.Context, parentID, name, mimeType string, r io.Reader, size int64,
) (*File, error) {
	if size <= multipartMaxSize {
		return c.uploadMultipart(ctx, parentID, name, mimeType, r)
	}

	return c.uploadResumable(ctx, parentID, name, mimeType, r, size)
}

// uploadMultipart sends metadata and content in a single multipart/related
// request. Only suitable for small files — the whole part set is buffered.
func (c *Client) uploadMultipart(
	ctx context.Context, parentID, name, mimeType string, r io.Reader,
) (*File, error) {
	c.logger.Info("multipart upload",
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	meta := createFileRequest{Name: name, Parents: []string{parentID}}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("drive: marshaling upload metadata: %w", err)
	}

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")

	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("drive: creating metadata part: %w", err)
	}

	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("drive: writing metadata part: %w", err)
	}

	contentHeader := textproto.MIMEHeader{}
	if mimeType != "" {
		contentHeader.Set("Content-Type", mimeType)
	}

	contentPart, err := mw.CreatePart(contentHeader)
	if err != nil {
		return nil, fmt.Errorf("drive: creating content part: %w", err)
	}

	if _, err := io.Copy(contentPart, r); err != nil {
		return nil, fmt.Errorf("drive: reading upload content: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("drive: finalizing multipart body: %w", err)
	}

	url := c.uploadURL + "/files?uploadType=multipart&fields=" + uploadFields
	contentType := "multipart/related; boundary=" + mw.Boundary()

	resp, err := c.doRaw(ctx, http.MethodPost, url, contentType, &buf, int64(buf.Len()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeFile(resp.Body, c.logger)
}

// uploadResumable initiates an upload session, then streams the content in a
// single PUT against the session URI. The initiation request carries only
// metadata, so it can safely go through the retrying do() path.
func (c *Client) uploadResumable(
	ctx context.Context, parentID, name, mimeType string, r io.Reader, size int64,
) (*File, error) {
	c.logger.Info("resumable upload",
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	sessionURL, err := c.initResumableSession(ctx, parentID, name, mimeType, size)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRaw(ctx, http.MethodPut, sessionURL, mimeType, r, size)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeFile(resp.Body, c.logger)
}

// initResumableSession creates an upload session and returns its URI from
// the Location header.
func (c *Client) initResumableSession(
	ctx context.Context, parentID, name, mimeType string, size int64,
) (string, error) {
	meta := createFileRequest{Name: name, Parents: []string{parentID}}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("drive: marshaling session metadata: %w", err)
	}

	url := c.uploadURL + "/files?uploadType=resumable&fields=" + uploadFields

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("drive: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(metaJSON))
	if err != nil {
		return "", fmt.Errorf("drive: creating session request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return "", fmt.Errorf("drive: obtaining token for session: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))

	if mimeType != "" {
		req.Header.Set("X-Upload-Content-Type", mimeType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive: session initiation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return "", newAPIError(resp.StatusCode, body)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("drive: session response missing Location header")
	}

	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return "", fmt.Errorf("drive: draining session response body: %w", drainErr)
	}

	return sessionURL, nil
}

// doRaw sends an authenticated request with a custom content type and length.
// Unlike do(), this never retries — retrying a partially-consumed reader is
// not safe.
func (c *Client) doRaw(
	ctx context.Context, method, url, contentType string, body io.Reader, length int64,
) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("drive: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("drive: creating upload request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("drive: obtaining token for upload: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = length

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upload request failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("drive: upload request failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		resp.Body.Close()

		return nil, newAPIError(resp.StatusCode, errBody)
	}

	return resp, nil
}

// decodeFile decodes a files resource from an upload response body.
func decodeFile(r io.Reader, logger *slog.Logger) (*File, error) {
	var fr fileResponse
	if err := json.NewDecoder(r).Decode(&fr); err != nil {
		return nil, fmt.Errorf("drive: decoding upload response: %w", err)
	}

	f := fr.toFile(logger)

	return &f, nil
}
