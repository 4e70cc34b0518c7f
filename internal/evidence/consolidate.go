package evidence

import (
	"strings"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// Consolidate deduplicates gathered items into the requirement set.
// Identity is the evidence key (agency, folded title, normalized URL,
// required flag); the first occurrence wins and keeps its provenance.
func Consolidate(items []model.EvidenceItem) model.ConsolidatedRequirementSet {
	set := model.ConsolidatedRequirementSet{
		CountsByAgency: make(map[string]int),
	}
	seen := make(map[model.EvidenceKey]struct{}, len(items))
	for _, item := range items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		set.Items = append(set.Items, item)
		set.CountsByAgency[strings.ToUpper(item.Agency)]++
	}
	set.Total = len(set.Items)
	return set
}
