package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient fetches readings from a JSON feed endpoint:
//
//	GET {baseURL}/feeds/{feedID}/latest
//	-> {"value": 6512300000000, "updated_at": "2026-08-29T12:00:00Z", "ok": true}
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a feed client against the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type feedResponse struct {
	Value     int64     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	OK        bool      `json:"ok"`
}

func (c *HTTPClient) GetLatest(ctx context.Context, feedID string) (Reading, error) {
	endpoint := fmt.Sprintf("%s/feeds/%s/latest", c.baseURL, url.PathEscape(feedID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Reading{}, ErrUnknownFeed
	}
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: status %s", ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read response: %w", err)
	}

	var fr feedResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return Reading{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return Reading{Value: fr.Value, UpdatedAt: fr.UpdatedAt, OK: fr.OK}, nil
}
