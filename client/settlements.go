package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Settlement represents a settlement record returned by the relayer API.
type Settlement struct {
	ID              int64     `json:"id"`
	Signature       string    `json:"signature"`
	LogIndex        int       `json:"log_index"`
	Kind            string    `json:"kind"` // buy, sell
	UserAddress     string    `json:"user_address"`
	Ticker          string    `json:"ticker"`
	UsdcAmount      int64     `json:"usdc_amount"`
	AssetAmount     int64     `json:"asset_amount"`
	Price           int64     `json:"price"`
	OracleTimestamp int64     `json:"oracle_timestamp"`
	Status          string    `json:"status"`
	MintSignature   *string   `json:"mint_signature,omitempty"`
	BurnSignature   *string   `json:"burn_signature,omitempty"`
	PayoutSignature *string   `json:"payout_signature,omitempty"`
	LastError       *string   `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Client is the HTTP client for the relayer settlement API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new settlement API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Get retrieves one settlement by its event identity: the transaction
// signature plus the event's log index within that transaction.
func (c *Client) Get(ctx context.Context, signature string, logIndex int) (*Settlement, error) {
	u := fmt.Sprintf("%s/api/v1/settlements/%s/%d", c.baseURL, url.PathEscape(signature), logIndex)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var settlement Settlement
	if err := json.NewDecoder(resp.Body).Decode(&settlement); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &settlement, nil
}

// List retrieves settlements in the given status, oldest first. A limit of 0
// uses the server default.
func (c *Client) List(ctx context.Context, status string, limit int) ([]*Settlement, error) {
	q := url.Values{}
	q.Set("status", status)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	u := c.baseURL + "/api/v1/settlements?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Settlements []*Settlement `json:"settlements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Settlements, nil
}

// Health reports whether the relayer and its database are reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
