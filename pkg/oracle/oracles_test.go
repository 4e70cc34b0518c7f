package oracle

import (
	"context"
	"strings"
	"testing"
)

type stubClient struct {
	text string
	err  error
	last Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (*Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.text}, nil
}

func TestDecodeJSONBareArray(t *testing.T) {
	var out []string
	if err := decodeJSON(`["organic certification","cosmetic labeling"]`, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0] != "organic certification" {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestDecodeJSONFencedObject(t *testing.T) {
	text := "```json\n{\"primary\": [\"FDA\"], \"confidence\": 0.8}\n```"
	var out AgencySuggestion
	if err := decodeJSON(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Primary) != 1 || out.Primary[0] != "FDA" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestDecodeJSONWithLeadInProse(t *testing.T) {
	text := `Here are the keywords: ["lipstick", "cosmetics", "fda registration"]`
	var out []string
	if err := decodeJSON(text, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 keywords, got %v", out)
	}
}

func TestDecodeJSONGarbage(t *testing.T) {
	var out []string
	if err := decodeJSON("I cannot answer that.", &out); err == nil {
		t.Fatal("expected decode error for non-JSON text")
	}
}

func TestKeywordOracleLimitsAndNormalizes(t *testing.T) {
	stub := &stubClient{text: `["Lipstick", " Cosmetics ", "FDA Registration", "extra", "more"]`}
	o := NewKeywordOracle(stub)

	keywords, err := o.Extract(context.Background(), "Matte Lipstick", "cosmetic product", 3)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("expected 3 keywords, got %v", keywords)
	}
	if keywords[0] != "lipstick" || keywords[1] != "cosmetics" {
		t.Fatalf("keywords not normalized: %v", keywords)
	}
}

func TestAgencyOracleRejectsEmptyPrimary(t *testing.T) {
	stub := &stubClient{text: `{"primary": [], "secondary": ["EPA"], "confidence": 0.3}`}
	o := NewAgencyOracle(stub)

	if _, err := o.Suggest(context.Background(), "3304", "lipstick", ""); err == nil {
		t.Fatal("expected error for empty primary agency list")
	}
}

func TestRequirementOracleEmptyListIsValid(t *testing.T) {
	stub := &stubClient{text: `[]`}
	o := NewRequirementOracle(stub)

	reqs, err := o.Extract(context.Background(), "FDA", "https://fda.gov/imports", "nothing relevant")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatalf("expected empty list, got %v", reqs)
	}
}

func TestSummaryOracleIncludesConflicts(t *testing.T) {
	stub := &stubClient{text: `{"answer": "Register with FDA.", "answer_ko": "FDA에 등록하세요.", "claims": []}`}
	o := NewSummaryOracle(stub)

	summary, err := o.Summarize(context.Background(), SummaryInput{
		HSCode:       "3304",
		ProductName:  "lipstick",
		Requirements: "- FDA facility registration",
		Conflicts:    "- FDA and USDA organic labeling overlap",
	})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Answer == "" || summary.AnswerKO == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(stub.last.Prompt, "Detected conflicts") {
		t.Fatal("conflict section missing from prompt")
	}
}
