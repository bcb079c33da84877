package coverage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// UploadMeta identifies the commit a report belongs to.
type UploadMeta struct {
	CommitSHA string
	Branch    string
}

// Client uploads coverage reports to the tracking service. An upload error
// is a hard failure: the pipeline is configured to fail the job when the
// upload itself errors.
type Client struct {
	serviceURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an upload client for the given service endpoint.
func NewClient(serviceURL string, logger *zap.Logger) *Client {
	return &Client{
		serviceURL: serviceURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Upload sends the report file at path with its commit metadata as a
// multipart POST. Any non-2xx response is an error.
func (c *Client) Upload(ctx context.Context, path string, meta UploadMeta) error {
	if c.serviceURL == "" {
		return fmt.Errorf("coverage upload: service URL not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading coverage report: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("commit", meta.CommitSHA); err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.WriteField("branch", meta.Branch); err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}

	part, err := mw.CreateFormFile("report", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, &body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading coverage report: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close upload response body", zap.Error(err))
		}
	}()

	//nolint:errcheck // Best effort read for logging only
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("coverage upload returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("coverage report uploaded",
		zap.String("commit", meta.CommitSHA),
		zap.String("branch", meta.Branch),
		zap.Int("status", resp.StatusCode))
	return nil
}
