package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// EvidenceKind classifies a regulatory claim.
type EvidenceKind string

const (
	EvidenceCertification EvidenceKind = "certification"
	EvidenceDocument      EvidenceKind = "document"
	EvidenceNotice        EvidenceKind = "notice"
)

// Provenance records where an evidence item came from.
type Provenance struct {
	Provider    string    `json:"provider"`
	Query       string    `json:"query"`
	Strategy    string    `json:"strategy,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// EvidenceItem is one discrete regulatory claim with provenance.
type EvidenceItem struct {
	Kind        EvidenceKind `json:"kind"`
	Agency      string       `json:"agency"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	SourceURL   string       `json:"source_url,omitempty"`
	Required    bool         `json:"required"`
	EffectiveAt *time.Time   `json:"effective_at,omitempty"`
	RawPayload  []byte       `json:"-"`
	Provenance  Provenance   `json:"provenance"`
}

// EvidenceKey is the identity used for deduplication.
type EvidenceKey struct {
	Agency   string
	Name     string
	URL      string
	Required bool
}

var keyFolder = cases.Fold()

// Key builds the dedup identity: agency, case-folded trimmed title,
// normalized URL, and the required flag. Two items with equal keys are the
// same claim regardless of which provider reported them.
func (e EvidenceItem) Key() EvidenceKey {
	return EvidenceKey{
		Agency:   strings.ToUpper(strings.TrimSpace(e.Agency)),
		Name:     keyFolder.String(strings.TrimSpace(e.Title)),
		URL:      normalizeURL(e.SourceURL),
		Required: e.Required,
	}
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(strings.ToLower(raw))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}

// Citation is a source reference backing a claim in the summary.
type Citation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Agency string `json:"agency"`
	Type   string `json:"type,omitempty"`
}

// ConsolidatedRequirementSet is the deduplicated evidence for one analysis.
type ConsolidatedRequirementSet struct {
	Items          []EvidenceItem `json:"items"`
	CountsByAgency map[string]int `json:"counts_by_agency"`
	Total          int            `json:"total"`
}

// ByAgency groups the consolidated items by owning agency, preserving
// insertion order within each agency.
func (s ConsolidatedRequirementSet) ByAgency() map[string][]EvidenceItem {
	grouped := make(map[string][]EvidenceItem)
	for _, item := range s.Items {
		agency := strings.ToUpper(item.Agency)
		grouped[agency] = append(grouped[agency], item)
	}
	return grouped
}

// OfKind returns the consolidated items of one claim kind, in order.
func (s ConsolidatedRequirementSet) OfKind(kind EvidenceKind) []EvidenceItem {
	var out []EvidenceItem
	for _, item := range s.Items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// Citations derives one citation per distinct source URL.
func (s ConsolidatedRequirementSet) Citations() []Citation {
	seen := make(map[string]bool)
	var out []Citation
	for _, item := range s.Items {
		if item.SourceURL == "" {
			continue
		}
		key := normalizeURL(item.SourceURL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Citation{
			Title:  item.Title,
			URL:    item.SourceURL,
			Agency: strings.ToUpper(item.Agency),
		})
	}
	return out
}
