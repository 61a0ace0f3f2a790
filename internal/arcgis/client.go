// Package arcgis is a minimal client for ArcGIS REST feature layer
// /query endpoints.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 45 * time.Second

	// Bounded retry for flaky upstream services: two retries with
	// exponential backoff starting at 600ms.
	maxRetries     = 2
	initialBackoff = 600 * time.Millisecond
)

// Client queries ArcGIS REST feature layers
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new ArcGIS client. A zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Feature is one feature from an ArcGIS query response
type Feature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *FeatureGeometry       `json:"geometry"`
}

// FeatureGeometry carries the Esri polygon rings of a feature
type FeatureGeometry struct {
	Rings [][][]float64 `json:"rings"`
}

// APIError is an error object returned inside an otherwise-200 response
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arcgis error %d: %s", e.Code, e.Message)
}

// queryResponse is the raw /query response envelope
type queryResponse struct {
	Features              []Feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
	Error                 *APIError `json:"error"`
}

// Query performs a single /query request against a feature layer.
// Requests are sent as form-encoded POSTs so large polygon geometries
// do not hit URL length limits.
func (c *Client) Query(ctx context.Context, layerURL string, params url.Values) ([]Feature, bool, error) {
	form := url.Values{}
	for k, vs := range params {
		form[k] = vs
	}
	form.Set("f", "json")

	queryURL := strings.TrimRight(layerURL, "/") + "/query"

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		page, retryable, err := c.doQuery(ctx, queryURL, form)
		if err == nil {
			return page.Features, page.ExceededTransferLimit, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, false, lastErr
}

// doQuery executes one attempt. Transport failures and 5xx responses are
// retryable; everything else is not.
func (c *Client) doQuery(ctx context.Context, queryURL string, form url.Values) (*queryResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("querying layer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var page queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if page.Error != nil {
		return nil, false, page.Error
	}

	return &page, false, nil
}

// QueryAll pages through a /query until the service stops reporting an
// exceeded transfer limit, accumulating every feature.
func (c *Client) QueryAll(ctx context.Context, layerURL string, params url.Values) ([]Feature, error) {
	paged := url.Values{}
	for k, vs := range params {
		paged[k] = vs
	}

	var features []Feature
	offset := 0
	for {
		paged.Set("resultOffset", strconv.Itoa(offset))

		page, exceeded, err := c.Query(ctx, layerURL, paged)
		if err != nil {
			return nil, err
		}
		features = append(features, page...)

		if !exceeded || len(page) == 0 {
			break
		}
		offset += len(page)
	}

	return features, nil
}
