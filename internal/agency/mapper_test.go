package agency

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lawgenie/compliance-cli/internal/model"
	"github.com/lawgenie/compliance-cli/pkg/oracle"
)

type fakeSuggester struct {
	suggestion *oracle.AgencySuggestion
	err        error
	calls      int
}

func (f *fakeSuggester) Suggest(context.Context, string, string, string) (*oracle.AgencySuggestion, error) {
	f.calls++
	return f.suggestion, f.err
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := LoadRegistry()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return r
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "mappings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveStaticRule(t *testing.T) {
	m := NewMapper(nil, nil, testRegistry(t))
	targets := m.Resolve(context.Background(), model.AnalysisRequest{
		HSCode: "3304.99.00", ProductName: "lipstick",
	})

	if targets.Source != "rule" {
		t.Fatalf("expected rule source, got %s", targets.Source)
	}
	if len(targets.Primary) != 1 || targets.Primary[0] != "FDA" {
		t.Fatalf("expected FDA primary, got %v", targets.Primary)
	}
	if !containsAgency(targets.Secondary, "CPSC") || !containsAgency(targets.Secondary, "CBP") {
		t.Fatalf("expected CPSC and CBP secondary, got %v", targets.Secondary)
	}
	if targets.Confidence != RuleConfidence {
		t.Fatalf("expected rule confidence, got %v", targets.Confidence)
	}
}

func TestResolveOracleFallbackLearns(t *testing.T) {
	store := testStore(t)
	suggester := &fakeSuggester{suggestion: &oracle.AgencySuggestion{
		Primary:    []string{"ATF"},
		Secondary:  []string{"CBP", "NOTREAL"},
		Confidence: 0.75,
	}}
	m := NewMapper(store, suggester, testRegistry(t))

	req := model.AnalysisRequest{HSCode: "9301.10", ProductName: "rifle scope"}
	targets := m.Resolve(context.Background(), req)

	if targets.Source != "oracle" {
		t.Fatalf("expected oracle source, got %s", targets.Source)
	}
	if targets.Primary[0] != "ATF" {
		t.Fatalf("expected ATF primary, got %v", targets.Primary)
	}
	if containsAgency(targets.Secondary, "NOTREAL") {
		t.Fatal("unknown acronym should be filtered")
	}

	// Second resolve must hit the learned store, not the oracle.
	targets2 := m.Resolve(context.Background(), req)
	if targets2.Source != "learned" {
		t.Fatalf("expected learned source, got %s", targets2.Source)
	}
	if suggester.calls != 1 {
		t.Fatalf("oracle should be called once, got %d", suggester.calls)
	}

	rows, err := store.TopUsed(context.Background(), 5)
	if err != nil {
		t.Fatalf("top used: %v", err)
	}
	if len(rows) != 1 || rows[0].Uses != 1 {
		t.Fatalf("expected one mapping with one use, got %+v", rows)
	}
}

func TestResolveChapterInference(t *testing.T) {
	suggester := &fakeSuggester{err: errors.New("model unavailable")}
	m := NewMapper(nil, suggester, testRegistry(t))

	targets := m.Resolve(context.Background(), model.AnalysisRequest{
		HSCode: "2915.21", ProductName: "acetic acid",
	})
	if targets.Source != "inferred" {
		t.Fatalf("expected inferred source, got %s", targets.Source)
	}
	if targets.Primary[0] != "EPA" {
		t.Fatalf("chapter 29 should infer EPA, got %v", targets.Primary)
	}
	if targets.Confidence != InferredConfidence {
		t.Fatalf("expected inferred confidence, got %v", targets.Confidence)
	}
}

func TestResolveDefaultNeverEmpty(t *testing.T) {
	m := NewMapper(nil, nil, testRegistry(t))
	targets := m.Resolve(context.Background(), model.AnalysisRequest{
		HSCode: "9999.99", ProductName: "unclassifiable",
	})
	if targets.Source != "default" {
		t.Fatalf("expected default source, got %s", targets.Source)
	}
	if len(targets.Primary) == 0 {
		t.Fatal("targets must never be empty")
	}
	if targets.Primary[0] != "FDA" {
		t.Fatalf("default primary should be FDA, got %v", targets.Primary)
	}
}

func TestInferFromChapterBands(t *testing.T) {
	cases := []struct {
		chapter string
		want    string
		ok      bool
	}{
		{"02", "FDA", true},
		{"24", "FDA", true},
		{"25", "", false},
		{"33", "EPA", true},
		{"85", "FCC", true},
		{"95", "FDA", true},
		{"99", "", false},
	}
	for _, tc := range cases {
		agencies, ok := inferFromChapter(tc.chapter)
		if ok != tc.ok {
			t.Fatalf("chapter %s: expected ok=%v", tc.chapter, tc.ok)
		}
		if ok && agencies[0] != tc.want {
			t.Fatalf("chapter %s: expected %s, got %v", tc.chapter, tc.want, agencies)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry(t)
	info, ok := r.Lookup("fda")
	if !ok {
		t.Fatal("FDA should be registered")
	}
	if info.Domain != "fda.gov" {
		t.Fatalf("unexpected domain %s", info.Domain)
	}
	if r.Known("NOTREAL") {
		t.Fatal("unknown acronym should not be known")
	}
}
