package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/medishare/recordvault/pkg/config"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

const locatorScheme = "ipfs://"

// Client stores and retrieves opaque encrypted blobs on an IPFS node via its
// HTTP API. The returned locator is a stable content address; the node only
// ever sees ciphertext.
type Client struct {
	nodeURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new content locator client
func NewClient(cfg *config.StorageConfig, log *logger.Logger) *Client {
	return &Client{
		nodeURL: strings.TrimRight(cfg.NodeURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: log.WithComponent("storage"),
	}
}

// addResponse is the node's reply to /api/v0/add
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Store uploads a ciphertext blob and returns its locator.
// Storage failures propagate as storage_unavailable; there is no silent
// empty-result fallback.
func (c *Client) Store(ctx context.Context, blob []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "blob")
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to build upload request", err)
	}
	if _, err := part.Write(blob); err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to build upload request", err)
	}
	if err := writer.Close(); err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to build upload request", err)
	}

	url := c.nodeURL + "/api/v0/add?pin=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", types.NewStorageUnavailableError(types.ErrCodeStorageFailure, "content store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewStorageUnavailableError(types.ErrCodeStorageFailure,
			fmt.Sprintf("content store returned status %d", resp.StatusCode), nil)
	}

	var added addResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", types.NewStorageUnavailableError(types.ErrCodeStorageFailure, "malformed content store response", err)
	}
	if added.Hash == "" {
		return "", types.NewStorageUnavailableError(types.ErrCodeStorageFailure, "content store returned no address", nil)
	}

	locator := locatorScheme + added.Hash
	c.logger.Debug("Stored encrypted blob", "locator", locator, "size", len(blob))
	return locator, nil
}

// Retrieve downloads the ciphertext blob at the given locator
func (c *Client) Retrieve(ctx context.Context, locator string) ([]byte, error) {
	if !strings.HasPrefix(locator, locatorScheme) || len(locator) == len(locatorScheme) {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "malformed locator")
	}
	cid := strings.TrimPrefix(locator, locatorScheme)

	url := c.nodeURL + "/api/v0/cat?arg=" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to build retrieve request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewStorageUnavailableError(types.ErrCodeStorageFailure, "content store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewStorageUnavailableError(types.ErrCodeStorageFailure,
			fmt.Sprintf("content store returned status %d", resp.StatusCode), nil)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewStorageUnavailableError(types.ErrCodeStorageFailure, "failed to read content store response", err)
	}

	return blob, nil
}
