package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medishare/recordvault/pkg/config"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// GatewayClient anchors content hashes through an external chain gateway.
// The gateway holds the custodial signing wallets, so a commit lands on the
// ledger under the uploading owner's identity without this service ever
// touching private key material.
type GatewayClient struct {
	gatewayURL string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewGatewayClient creates a new anchor gateway client
func NewGatewayClient(cfg *config.AnchorConfig, log *logger.Logger) *GatewayClient {
	return &GatewayClient{
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: log.WithComponent("anchor"),
	}
}

type anchorRequest struct {
	OwnerID     string `json:"owner_id"`
	ContentHash string `json:"content_hash"`
}

type anchorResponse struct {
	TxID       string    `json:"tx_id"`
	AnchoredAt time.Time `json:"anchored_at"`
}

// Anchor commits the content hash to the ledger under the owner's identity
func (c *GatewayClient) Anchor(ctx context.Context, ownerID, contentHash string) (*types.AnchorReceipt, error) {
	payload, err := json.Marshal(anchorRequest{OwnerID: ownerID, ContentHash: contentHash})
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to build anchor request", err)
	}

	url := c.gatewayURL + "/api/v1/anchors"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to build anchor request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.AnchorTransaction(ownerID, contentHash, "", false)
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.AnchorTransaction(ownerID, contentHash, "", false)
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure,
			fmt.Sprintf("anchor gateway returned status %d", resp.StatusCode), nil)
	}

	var result anchorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "malformed anchor gateway response", err)
	}
	if result.TxID == "" {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor gateway returned no transaction id", nil)
	}

	anchoredAt := result.AnchoredAt
	if anchoredAt.IsZero() {
		anchoredAt = time.Now()
	}

	c.logger.AnchorTransaction(ownerID, contentHash, result.TxID, true)

	return &types.AnchorReceipt{
		TxID:        result.TxID,
		OwnerID:     ownerID,
		ContentHash: contentHash,
		AnchoredAt:  anchoredAt,
	}, nil
}
