// Package webscrape fetches agency web pages and converts them to
// markdown. It is the fallback evidence source when neither the
// structured catalog nor search returns anything usable.
package webscrape

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "compliance-cli/1.0 (regulatory research)"
	maxBodyBytes     = 4 << 20
	maxMarkdownRunes = 20000
)

// Page is a fetched and converted document.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Scraper fetches pages and renders them as markdown.
type Scraper interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// StatusError carries a non-2xx fetch response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return "webscrape: status " + strconv.Itoa(e.StatusCode) + " fetching " + e.URL
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the scraper.
type Option func(*scraper)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *scraper) {
		s.http = hc
	}
}

// WithRateLimit caps outgoing fetches per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *scraper) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type scraper struct {
	http      *http.Client
	limiter   *rate.Limiter
	converter *md.Converter
}

// New creates a Scraper with sane fetch limits.
func New(opts ...Option) Scraper {
	s := &scraper{
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(2), 2),
		converter: md.NewConverter("", true, nil),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *scraper) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "webscrape: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "webscrape: create request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "webscrape: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "webscrape: read page")
	}

	html := string(body)
	markdown, err := s.converter.ConvertString(html)
	if err != nil {
		return nil, eris.Wrap(err, "webscrape: convert to markdown")
	}
	markdown = truncateRunes(strings.TrimSpace(markdown), maxMarkdownRunes)

	return &Page{
		URL:      pageURL,
		Title:    extractTitle(html),
		Markdown: markdown,
	}, nil
}

func extractTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open < 0 {
		return ""
	}
	start += open + 1
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
