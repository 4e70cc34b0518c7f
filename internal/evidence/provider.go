// Package evidence gathers regulatory requirements for a product from
// the structured catalog, government-domain search, and agency-page
// scraping, then consolidates them into one deduplicated set.
package evidence

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lawgenie/compliance-cli/internal/agency"
	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/pkg/datagov"
	"github.com/lawgenie/compliance-cli/pkg/oracle"
	"github.com/lawgenie/compliance-cli/pkg/tavily"
	"github.com/lawgenie/compliance-cli/pkg/webscrape"
)

// Strategy is one of the escalating query formulations tried per
// agency: the exact classification code, the extracted keywords, then
// the full product text.
type Strategy string

const (
	StrategyCode     Strategy = "code"
	StrategyKeyword  Strategy = "keyword"
	StrategyFreeText Strategy = "freetext"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCode, StrategyKeyword, StrategyFreeText:
		return true
	}
	return false
}

// Query is one gathering unit: a single agency and query strategy.
type Query struct {
	Agency      agency.Info
	Strategy    Strategy
	HSCode      string
	ProductName string
	Description string
	Keywords    []string
}

// SearchText renders the query text for this strategy.
func (q Query) SearchText() string {
	switch q.Strategy {
	case StrategyCode:
		return "HS " + q.HSCode + " import requirements"
	case StrategyKeyword:
		return strings.Join(q.Keywords, " ") + " import requirements"
	default:
		return strings.TrimSpace(strings.Join(strings.Fields(
			q.ProductName+" "+q.Description), " ") + " import requirements")
	}
}

// Provider is one evidence source. Returning an empty slice with a
// nil error means the source has nothing for this query, which is a
// valid answer.
type Provider interface {
	Name() string
	Gather(ctx context.Context, q Query) ([]model.EvidenceItem, error)
}

var noticeMarkers = []string{"alert", "notice", "recall", "advisory", "bulletin"}
var certificationMarkers = []string{"certif", "accredit", "approval", "registration", "license", "permit"}

// classifyKind buckets a claim by its language: explicit alert and
// notice wording first, certification wording second, everything else
// is a document requirement.
func classifyKind(text string) model.EvidenceKind {
	lower := strings.ToLower(text)
	for _, marker := range noticeMarkers {
		if strings.Contains(lower, marker) {
			return model.EvidenceNotice
		}
	}
	for _, marker := range certificationMarkers {
		if strings.Contains(lower, marker) {
			return model.EvidenceCertification
		}
	}
	return model.EvidenceDocument
}

// requiredMarkers flag mandatory language in source text.
var requiredMarkers = []string{"required", "mandatory", "must ", "shall "}

func looksRequired(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range requiredMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncateText(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// DatagovProvider sources evidence from the Data.gov catalog.
type DatagovProvider struct {
	client datagov.Client
}

// NewDatagovProvider wraps a catalog client as a Provider.
func NewDatagovProvider(client datagov.Client) *DatagovProvider {
	return &DatagovProvider{client: client}
}

func (p *DatagovProvider) Name() string { return "datagov" }

func (p *DatagovProvider) Gather(ctx context.Context, q Query) ([]model.EvidenceItem, error) {
	query := q.SearchText()
	resp, err := p.client.PackageSearch(ctx, datagov.PackageSearchRequest{
		Query:        query,
		Organization: q.Agency.CatalogOrg,
		Rows:         5,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "datagov gather %s/%s", q.Agency.Acronym, q.Strategy)
	}

	now := time.Now()
	items := make([]model.EvidenceItem, 0, len(resp.Result.Datasets))
	for _, ds := range resp.Result.Datasets {
		url := ""
		if len(ds.Resources) > 0 {
			url = ds.Resources[0].URL
		}
		items = append(items, model.EvidenceItem{
			Kind:        classifyKind(ds.Title + " " + ds.Notes),
			Agency:      q.Agency.Acronym,
			Title:       ds.Title,
			Description: truncateText(ds.Notes, 500),
			SourceURL:   url,
			Required:    looksRequired(ds.Title + " " + ds.Notes),
			Provenance: model.Provenance{
				Provider:    p.Name(),
				Query:       query,
				Strategy:    string(q.Strategy),
				RetrievedAt: now,
			},
		})
	}
	return items, nil
}

// TavilyProvider sources evidence from government-domain search.
type TavilyProvider struct {
	client tavily.Client
}

// NewTavilyProvider wraps a search client as a Provider.
func NewTavilyProvider(client tavily.Client) *TavilyProvider {
	return &TavilyProvider{client: client}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) Gather(ctx context.Context, q Query) ([]model.EvidenceItem, error) {
	query := q.Agency.Acronym + " " + q.SearchText()

	resp, err := p.client.Search(ctx, tavily.SearchRequest{
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     5,
		IncludeDomains: []string{q.Agency.Domain},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "tavily gather %s/%s", q.Agency.Acronym, q.Strategy)
	}

	now := time.Now()
	items := make([]model.EvidenceItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, model.EvidenceItem{
			Kind:        classifyKind(r.Title + " " + r.Content),
			Agency:      q.Agency.Acronym,
			Title:       r.Title,
			Description: truncateText(r.Content, 500),
			SourceURL:   r.URL,
			Required:    looksRequired(r.Title + " " + r.Content),
			Provenance: model.Provenance{
				Provider:    p.Name(),
				Query:       query,
				Strategy:    string(q.Strategy),
				RetrievedAt: now,
			},
		})
	}
	return items, nil
}

// ScrapeProvider is the last resort: fetch the agency's import page
// and have the requirement oracle pull structured claims out of it.
type ScrapeProvider struct {
	scraper   webscrape.Scraper
	extractor *oracle.RequirementOracle
}

// NewScrapeProvider wires the scraper and extraction oracle.
func NewScrapeProvider(scraper webscrape.Scraper, extractor *oracle.RequirementOracle) *ScrapeProvider {
	return &ScrapeProvider{scraper: scraper, extractor: extractor}
}

func (p *ScrapeProvider) Name() string { return "scrape" }

func (p *ScrapeProvider) Gather(ctx context.Context, q Query) ([]model.EvidenceItem, error) {
	if q.Agency.ImportPage == "" {
		return nil, nil
	}
	page, err := p.scraper.Fetch(ctx, q.Agency.ImportPage)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape gather %s", q.Agency.Acronym)
	}

	extracted, err := p.extractor.Extract(ctx, q.Agency.Acronym, page.URL, page.Markdown)
	if err != nil {
		return nil, eris.Wrapf(err, "extract requirements %s", q.Agency.Acronym)
	}

	now := time.Now()
	var items []model.EvidenceItem
	for _, req := range extracted {
		kind := model.EvidenceKind(req.Kind)
		switch kind {
		case model.EvidenceCertification, model.EvidenceDocument, model.EvidenceNotice:
		default:
			kind = classifyKind(req.Name + " " + req.Description)
		}
		url := req.URL
		if url == "" {
			url = page.URL
		}
		items = append(items, model.EvidenceItem{
			Kind:        kind,
			Agency:      q.Agency.Acronym,
			Title:       req.Name,
			Description: truncateText(req.Description, 500),
			SourceURL:   url,
			Required:    req.Required,
			Provenance: model.Provenance{
				Provider:    p.Name(),
				Query:       q.Agency.ImportPage,
				Strategy:    string(q.Strategy),
				RetrievedAt: now,
			},
		})
	}
	return items, nil
}
