package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solstice/core/fixedpoint"
)

// PointsClient fetches per-wallet weekly base points from the external
// points provider.
type PointsClient struct {
	baseURL    string
	httpClient *http.Client
}

// PointsConfig represents the points client configuration.
type PointsConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewPointsClient constructs a points client targeting the supplied base URL.
func NewPointsClient(cfg PointsConfig) *PointsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PointsClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type pointsResponse struct {
	Wallet string `json:"wallet"`
	Points string `json:"points"`
}

// BasePoints returns the wallet's base points for the supplied week. A
// wallet the provider has never seen reports zero, not an error; anything
// else unexpected is surfaced so the caller can degrade that wallet.
func (c *PointsClient) BasePoints(ctx context.Context, week int64, wallet common.Address) (fixedpoint.Dec6, error) {
	url := fmt.Sprintf("%s/points/%d/%s", c.baseURL, week, wallet.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("points: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("points: fetch week %d wallet %s: %w", week, wallet.Hex(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fixedpoint.Zero(), nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fixedpoint.Zero(), fmt.Errorf("points: week %d wallet %s: status %d: %s", week, wallet.Hex(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload pointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fixedpoint.Zero(), fmt.Errorf("points: decode week %d wallet %s: %w", week, wallet.Hex(), err)
	}
	points, err := fixedpoint.ParseDec6Strict(payload.Points)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("points: week %d wallet %s: %w", week, wallet.Hex(), err)
	}
	if points.Sign() < 0 {
		return fixedpoint.Zero(), fmt.Errorf("points: week %d wallet %s: negative balance %q", week, wallet.Hex(), payload.Points)
	}
	return points, nil
}
