package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// OracleOption customizes an oracle's model selection.
type OracleOption func(model *string)

// WithModel overrides the oracle's default model.
func WithModel(m string) OracleOption {
	return func(model *string) {
		if m != "" {
			*model = m
		}
	}
}

// KeywordOracle extracts regulatory search keywords from a product
// description.
type KeywordOracle struct {
	client Client
	model  string
}

// NewKeywordOracle builds a keyword oracle on the fast model.
func NewKeywordOracle(client Client, opts ...OracleOption) *KeywordOracle {
	o := &KeywordOracle{client: client, model: DefaultFastModel}
	for _, opt := range opts {
		opt(&o.model)
	}
	return o
}

const keywordSystem = `You extract search keywords for US import-compliance research.
Respond with a JSON array of strings only. No prose.`

// Extract returns up to limit keywords for the product, ranked most
// relevant first.
func (o *KeywordOracle) Extract(ctx context.Context, productName, description string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	prompt := fmt.Sprintf(
		"Product: %s\nDescription: %s\n\nReturn the %d keywords most useful for finding US regulatory requirements for importing this product.",
		productName, description, limit)

	resp, err := o.client.Complete(ctx, Request{
		Model:     o.model,
		MaxTokens: 256,
		System:    keywordSystem,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, eris.Wrap(err, "keyword oracle")
	}
	resp.Usage.LogCost(o.model, "extract_keywords")

	var keywords []string
	if err := decodeJSON(resp.Text, &keywords); err != nil {
		return nil, err
	}
	out := make([]string, 0, limit)
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// AgencySuggestion is the oracle's view of which agencies regulate a
// product.
type AgencySuggestion struct {
	Primary    []string `json:"primary"`
	Secondary  []string `json:"secondary"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// AgencyOracle suggests regulating agencies when the rule table has no
// entry for an HS heading.
type AgencyOracle struct {
	client Client
	model  string
}

// NewAgencyOracle builds an agency oracle on the fast model.
func NewAgencyOracle(client Client, opts ...OracleOption) *AgencyOracle {
	o := &AgencyOracle{client: client, model: DefaultFastModel}
	for _, opt := range opts {
		opt(&o.model)
	}
	return o
}

const agencySystem = `You identify which US federal agencies regulate imported products.
Use standard agency acronyms (FDA, USDA, EPA, CPSC, FCC, ATF, DOT, CBP).
Respond with JSON only: {"primary": [...], "secondary": [...], "confidence": 0.0-1.0, "reasoning": "..."}`

// Suggest returns the oracle's agency mapping for an HS code.
func (o *AgencyOracle) Suggest(ctx context.Context, hsCode, productName, description string) (*AgencySuggestion, error) {
	prompt := fmt.Sprintf(
		"HS code: %s\nProduct: %s\nDescription: %s\n\nWhich US federal agencies regulate the import of this product?",
		hsCode, productName, description)

	resp, err := o.client.Complete(ctx, Request{
		Model:     o.model,
		MaxTokens: 512,
		System:    agencySystem,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, eris.Wrap(err, "agency oracle")
	}
	resp.Usage.LogCost(o.model, "target_agencies")

	var suggestion AgencySuggestion
	if err := decodeJSON(resp.Text, &suggestion); err != nil {
		return nil, err
	}
	if len(suggestion.Primary) == 0 {
		return nil, eris.New("agency oracle: no primary agencies in response")
	}
	return &suggestion, nil
}

// ExtractedRequirement is a single requirement parsed out of a scraped
// agency page.
type ExtractedRequirement struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // certification, document, notice
	Required    bool   `json:"required"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// RequirementOracle pulls structured requirements out of page text.
type RequirementOracle struct {
	client Client
	model  string
}

// NewRequirementOracle builds a requirement oracle on the fast model.
func NewRequirementOracle(client Client, opts ...OracleOption) *RequirementOracle {
	o := &RequirementOracle{client: client, model: DefaultFastModel}
	for _, opt := range opts {
		opt(&o.model)
	}
	return o
}

const requirementSystem = `You extract import requirements from US government agency web pages.
Classify each as kind "certification", "document", or "notice".
Respond with a JSON array of {"name", "kind", "required", "description", "url"} objects only.
Return [] if the page lists no import requirements.`

// Extract parses requirements for the given agency out of markdown
// page content.
func (o *RequirementOracle) Extract(ctx context.Context, agency, pageURL, markdown string) ([]ExtractedRequirement, error) {
	prompt := fmt.Sprintf(
		"Agency: %s\nPage: %s\n\n%s",
		agency, pageURL, markdown)

	resp, err := o.client.Complete(ctx, Request{
		Model:     o.model,
		MaxTokens: 2048,
		System:    requirementSystem,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, eris.Wrap(err, "requirement oracle")
	}
	resp.Usage.LogCost(o.model, "extract_requirements")

	var reqs []ExtractedRequirement
	if err := decodeJSON(resp.Text, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// SummaryClaim is one sentence of the summary tied to its source.
type SummaryClaim struct {
	Text        string `json:"text"`
	CitationURL string `json:"citation_url"`
}

// Summary is the structured bilingual answer.
type Summary struct {
	Answer   string         `json:"answer"`
	AnswerKO string         `json:"answer_ko"`
	Claims   []SummaryClaim `json:"claims"`
}

// SummaryInput carries everything the summary prompt needs.
type SummaryInput struct {
	HSCode       string
	ProductName  string
	Requirements string // pre-rendered requirement list
	Conflicts    string // pre-rendered conflict notes, may be empty
}

// SummaryOracle produces the final structured summary on the quality
// model.
type SummaryOracle struct {
	client Client
	model  string
}

// NewSummaryOracle builds a summary oracle.
func NewSummaryOracle(client Client, opts ...OracleOption) *SummaryOracle {
	o := &SummaryOracle{client: client, model: DefaultQualityModel}
	for _, opt := range opts {
		opt(&o.model)
	}
	return o
}

const summarySystem = `You write import-compliance summaries for trade professionals.
Every claim must cite one of the provided source URLs.
Respond with JSON only: {"answer": "...", "answer_ko": "...", "claims": [{"text", "citation_url"}]}.
"answer_ko" is the Korean translation of "answer".`

// Summarize renders the gathered requirements into a cited summary.
func (o *SummaryOracle) Summarize(ctx context.Context, in SummaryInput) (*Summary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "HS code: %s\nProduct: %s\n\nRequirements:\n%s\n", in.HSCode, in.ProductName, in.Requirements)
	if in.Conflicts != "" {
		fmt.Fprintf(&b, "\nDetected conflicts:\n%s\n", in.Conflicts)
	}
	b.WriteString("\nSummarize what the importer must do, in order of importance.")

	resp, err := o.client.Complete(ctx, Request{
		Model:     o.model,
		MaxTokens: 2048,
		System:    summarySystem,
		Prompt:    b.String(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "summary oracle")
	}
	resp.Usage.LogCost(o.model, "summarize")

	var summary Summary
	if err := decodeJSON(resp.Text, &summary); err != nil {
		return nil, err
	}
	if summary.Answer == "" {
		return nil, eris.New("summary oracle: empty answer")
	}
	return &summary, nil
}
