// Package datagov queries the Data.gov CKAN catalog for regulatory
// datasets published by federal agencies.
package datagov

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://catalog.data.gov/api/3"

// Client searches the Data.gov dataset catalog.
type Client interface {
	PackageSearch(ctx context.Context, req PackageSearchRequest) (*PackageSearchResponse, error)
}

// PackageSearchRequest holds the query parameters for package_search.
type PackageSearchRequest struct {
	Query        string
	Organization string
	Rows         int
}

// PackageSearchResponse is the CKAN action envelope.
type PackageSearchResponse struct {
	Success bool         `json:"success"`
	Result  SearchResult `json:"result"`
}

// SearchResult holds the matching datasets.
type SearchResult struct {
	Count    int       `json:"count"`
	Datasets []Dataset `json:"results"`
}

// Dataset is a single catalog entry.
type Dataset struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Notes        string       `json:"notes"`
	Organization Organization `json:"organization"`
	Resources    []Resource   `json:"resources"`
	Modified     string       `json:"metadata_modified"`
}

// Organization is the publishing agency.
type Organization struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Resource is a downloadable artifact attached to a dataset.
type Resource struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// StatusError carries a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "datagov: unexpected status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Data.gov catalog client. The catalog API needs
// no key.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) PackageSearch(ctx context.Context, req PackageSearchRequest) (*PackageSearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "datagov: rate limit wait")
	}

	q := url.Values{}
	q.Set("q", req.Query)
	if req.Rows > 0 {
		q.Set("rows", strconv.Itoa(req.Rows))
	}
	if req.Organization != "" {
		q.Set("fq", "organization:"+req.Organization)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/action/package_search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result PackageSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "datagov: unmarshal response")
	}
	if !result.Success {
		return nil, eris.New("datagov: API reported failure")
	}

	// count == 0 is a legitimate answer for obscure product categories.
	return &result, nil
}
