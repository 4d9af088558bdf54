// Package predict implements the client side of the external purchase
// prediction service. The client is single-shot: it performs exactly one
// POST per call and reports transport or HTTP-level failures as errors.
// Retrying is the decision engine's responsibility.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
)

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// Client requests a purchase probability for one feature payload.
type Client interface {
	Predict(ctx context.Context, req models.PredictRequest) (*models.PredictResponse, error)
}

const requestTimeout = 5 * time.Second

// HTTPClient is the production Client talking to the predictor's
// POST /predict endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPClient creates a client for the prediction service rooted at baseURL.
func NewHTTPClient(baseURL string, l *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		log:     l,
	}
}

// Predict posts the feature payload and decodes the service's answer.
// Any non-2xx status is an error so that the caller's retry policy sees
// refused connections, timeouts and server failures uniformly.
func (c *HTTPClient) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("predict: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("predict: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("predict: unexpected status %d: %s", resp.StatusCode, string(payload))
	}

	var result models.PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("predict: decode response: %w", err)
	}
	return &result, nil
}
