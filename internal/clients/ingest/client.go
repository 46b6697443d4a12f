package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/routedesk/server/internal/lib/geojson"
)

// HTTPDoer abstracts the HTTP client for testing
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the geometry ingestion service, which parses
// uploaded geometry files (GeoJSON, KML, GPX) into a normalized feature
// list. Format detection and parsing are entirely delegated to the service.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// ProcessedFile is the ingestion service's parse result for one upload
type ProcessedFile struct {
	FileName            string            `json:"file_name"`
	Features            []geojson.Feature `json:"features"`
	AvailableProperties []string          `json:"available_properties"`
}

// NewClient creates a new ingestion service client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// NewClientWithHTTPDoer creates a client with a custom HTTP doer, used in tests
func NewClientWithHTTPDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// FilePreview is the ingestion service's metadata-only parse result, enough
// to build a naming dialog without transferring feature geometry.
type FilePreview struct {
	FileName            string   `json:"file_name"`
	FeatureCount        int      `json:"feature_count"`
	AvailableProperties []string `json:"available_properties"`
}

// ProcessFile uploads a geometry file and returns its parsed features along
// with the property names available for feature naming.
func (c *Client) ProcessFile(ctx context.Context, fileName string, contents io.Reader) (*ProcessedFile, error) {
	resp, err := c.postFile(ctx, "/v1/files:process", fileName, contents)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("file processing failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var processed ProcessedFile
	if err := json.NewDecoder(resp.Body).Decode(&processed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if processed.FileName == "" {
		processed.FileName = fileName
	}

	return &processed, nil
}

// PreviewFile uploads a geometry file for metadata only: feature count and
// the property names usable for naming.
func (c *Client) PreviewFile(ctx context.Context, fileName string, contents io.Reader) (*FilePreview, error) {
	resp, err := c.postFile(ctx, "/v1/files:preview", fileName, contents)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("file preview failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var preview FilePreview
	if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if preview.FileName == "" {
		preview.FileName = fileName
	}

	return &preview, nil
}

func (c *Client) postFile(ctx context.Context, path, fileName string, contents io.Reader) (*http.Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return nil, fmt.Errorf("failed to read upload contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}
