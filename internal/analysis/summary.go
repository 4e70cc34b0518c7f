package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/pkg/oracle"
)

// OracleSummarizer adapts the summary oracle to the pipeline: it
// renders the consolidated set into prompt text and ties the returned
// claims back to known citations.
type OracleSummarizer struct {
	oracle *oracle.SummaryOracle
}

// NewOracleSummarizer wraps a summary oracle.
func NewOracleSummarizer(o *oracle.SummaryOracle) *OracleSummarizer {
	return &OracleSummarizer{oracle: o}
}

func (s *OracleSummarizer) Summarize(ctx context.Context, in SummaryInput) (*model.StructuredSummary, error) {
	summary, err := s.oracle.Summarize(ctx, oracle.SummaryInput{
		HSCode:       in.Request.HSCode,
		ProductName:  in.Request.ProductName,
		Requirements: renderRequirements(in.Requirements),
		Conflicts:    renderConflicts(in.Conflicts),
	})
	if err != nil {
		return nil, err
	}

	citationsByURL := make(map[string]model.Citation)
	for _, c := range in.Requirements.Citations() {
		citationsByURL[c.URL] = c
	}

	out := &model.StructuredSummary{
		Answer:   summary.Answer,
		AnswerKO: summary.AnswerKO,
	}
	for _, claim := range summary.Claims {
		citation, ok := citationsByURL[claim.CitationURL]
		if !ok {
			citation = model.Citation{URL: claim.CitationURL}
		}
		out.Claims = append(out.Claims, model.SummaryClaim{
			Text:     claim.Text,
			Citation: citation,
		})
	}
	return out, nil
}

// renderRequirements lists the consolidated items for the prompt,
// required claims first, capped to keep the prompt bounded.
func renderRequirements(set model.ConsolidatedRequirementSet) string {
	const maxLines = 25
	var b strings.Builder
	lines := 0
	write := func(item model.EvidenceItem) {
		marker := "optional"
		if item.Required {
			marker = "required"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, %s) %s\n",
			strings.ToUpper(item.Agency), item.Title, item.Kind, marker, item.SourceURL)
		lines++
	}
	for _, item := range set.Items {
		if lines == maxLines {
			break
		}
		if item.Required {
			write(item)
		}
	}
	for _, item := range set.Items {
		if lines == maxLines {
			break
		}
		if !item.Required {
			write(item)
		}
	}
	return b.String()
}

func renderConflicts(conflicts []model.Conflict) string {
	var b strings.Builder
	for _, c := range conflicts {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", c.Severity, strings.Join(c.Agencies, "/"), c.Description)
	}
	return b.String()
}
