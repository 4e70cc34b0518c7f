// Package hscode is a client for the HS-code recommendation service,
// a sibling system that maps product descriptions to candidate
// harmonized-system codes.
package hscode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client requests HS-code candidates for a product description.
type Client interface {
	Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error)
}

// RecommendRequest is the body for POST /v1/hs-codes/recommend.
type RecommendRequest struct {
	ProductName string `json:"product_name"`
	Description string `json:"description,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// RecommendResponse lists candidate codes, best match first.
type RecommendResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a single HS-code suggestion with match confidence.
type Candidate struct {
	HSCode      string  `json:"hs_code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// StatusError carries a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "hscode: unexpected status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a recommendation-service client for the given
// base URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "hscode: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/hs-codes/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "hscode: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "hscode: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hscode: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result RecommendResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "hscode: unmarshal response")
	}
	return &result, nil
}
