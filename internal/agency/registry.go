package agency

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed agencies.yaml
var registryYAML []byte

// Info is the metadata the evidence gatherer needs per agency: which
// domain to restrict searches to, which catalog organization to query,
// and where scraping starts.
type Info struct {
	Acronym    string `yaml:"acronym"`
	Name       string `yaml:"name"`
	Domain     string `yaml:"domain"`
	CatalogOrg string `yaml:"catalog_org"`
	ImportPage string `yaml:"import_page"`
}

// Registry holds the known-agency metadata from the embedded manifest.
type Registry struct {
	byAcronym map[string]Info
}

// LoadRegistry parses the embedded agency manifest.
func LoadRegistry() (*Registry, error) {
	var doc struct {
		Agencies []Info `yaml:"agencies"`
	}
	if err := yaml.Unmarshal(registryYAML, &doc); err != nil {
		return nil, eris.Wrap(err, "parse agency manifest")
	}
	r := &Registry{byAcronym: make(map[string]Info, len(doc.Agencies))}
	for _, a := range doc.Agencies {
		r.byAcronym[strings.ToUpper(a.Acronym)] = a
	}
	return r, nil
}

// Lookup returns metadata for an agency acronym.
func (r *Registry) Lookup(acronym string) (Info, bool) {
	info, ok := r.byAcronym[strings.ToUpper(acronym)]
	return info, ok
}

// Known reports whether the acronym is in the manifest.
func (r *Registry) Known(acronym string) bool {
	_, ok := r.byAcronym[strings.ToUpper(acronym)]
	return ok
}

// Acronyms returns every registered acronym.
func (r *Registry) Acronyms() []string {
	out := make([]string, 0, len(r.byAcronym))
	for a := range r.byAcronym {
		out = append(out, a)
	}
	return out
}
