package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solstice/native/rewards"
)

// ErrNotReady signals that the provider has not published the requested
// week yet. The distributor surfaces this as "skip this run", not a failure.
var ErrNotReady = errors.New("snapshot: week not ready")

// Client fetches weighted participant snapshots from the external provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config represents the client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient constructs a snapshot client targeting the supplied base URL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type snapshotEntry struct {
	Wallet  string `json:"wallet"`
	WeightA string `json:"weightA"`
	WeightB string `json:"weightB"`
}

// Get returns the participant set published for the supplied week. Weights
// arrive as decimal integer strings and are parsed exactly; a malformed
// weight fails the whole fetch rather than silently dropping a wallet.
func (c *Client) Get(ctx context.Context, week int64) (rewards.Snapshot, error) {
	url := fmt.Sprintf("%s/snapshots/%d", c.baseURL, week)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rewards.Snapshot{}, fmt.Errorf("snapshot: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rewards.Snapshot{}, fmt.Errorf("snapshot: fetch week %d: %w", week, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return rewards.Snapshot{}, fmt.Errorf("%w: week %d", ErrNotReady, week)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return rewards.Snapshot{}, fmt.Errorf("snapshot: week %d: status %d: %s", week, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []snapshotEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return rewards.Snapshot{}, fmt.Errorf("snapshot: decode week %d: %w", week, err)
	}

	out := rewards.Snapshot{Week: week, Entries: make([]rewards.Entry, 0, len(entries))}
	for _, entry := range entries {
		if !common.IsHexAddress(entry.Wallet) {
			return rewards.Snapshot{}, fmt.Errorf("snapshot: week %d: invalid wallet %q", week, entry.Wallet)
		}
		weightA, err := parseWeight(entry.WeightA)
		if err != nil {
			return rewards.Snapshot{}, fmt.Errorf("snapshot: week %d wallet %s: %w", week, entry.Wallet, err)
		}
		weightB, err := parseWeight(entry.WeightB)
		if err != nil {
			return rewards.Snapshot{}, fmt.Errorf("snapshot: week %d wallet %s: %w", week, entry.Wallet, err)
		}
		out.Entries = append(out.Entries, rewards.Entry{
			Wallet:  common.HexToAddress(entry.Wallet),
			WeightA: weightA,
			WeightB: weightB,
		})
	}
	return out, nil
}

func parseWeight(text string) (*big.Int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	weight, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid weight %q", text)
	}
	if weight.Sign() < 0 {
		return nil, fmt.Errorf("negative weight %q", text)
	}
	return weight, nil
}
