package model

// AnalysisRequest describes one product to analyze. It is immutable once the
// pipeline starts; stages read from it but never write back.
type AnalysisRequest struct {
	HSCode             string `json:"hs_code"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description,omitempty"`
	ForceRefresh       bool   `json:"force_refresh,omitempty"`
	IsNewProduct       bool   `json:"is_new_product,omitempty"`
}

// ChapterPrefix returns the 2-digit HS chapter, or "" for malformed codes.
func (r AnalysisRequest) ChapterPrefix() string {
	code := digitsOnly(r.HSCode)
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

// HeadingPrefix returns the normalized 4-digit HS heading, or "" for
// malformed codes. "3304.99.00" and "330499" both map to "3304".
func (r AnalysisRequest) HeadingPrefix() string {
	code := digitsOnly(r.HSCode)
	if len(code) < 4 {
		return ""
	}
	return code[:4]
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
