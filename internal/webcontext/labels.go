package webcontext

import (
	"regexp"
	"strings"
)

type sourceLabel struct {
	pattern *regexp.Regexp
	label   string
}

// sourceLabels is checked in order; the first match names the section.
var sourceLabels = []sourceLabel{
	{regexp.MustCompile(`(?i)reclame\s*aqui`), "Reputation (Reclame Aqui)"},
	{regexp.MustCompile(`(?i)jus\s*brasil`), "Legal records (Jusbrasil)"},
	{regexp.MustCompile(`(?i)\bcnpj\b|receita\s*federal`), "Company registry (CNPJ)"},
	{regexp.MustCompile(`(?i)instagram`), "Social (Instagram)"},
	{regexp.MustCompile(`(?i)facebook`), "Social (Facebook)"},
	{regexp.MustCompile(`(?i)linkedin`), "Social (LinkedIn)"},
	{regexp.MustCompile(`(?i)tripadvisor`), "Reviews (TripAdvisor)"},
	{regexp.MustCompile(`(?i)google\s*(reviews|avalia)|avalia\S*\s+(no\s+)?google`), "Reviews (Google)"},
}

// LabelForQuery infers a section heading from the query text.
func LabelForQuery(query string) string {
	for _, sl := range sourceLabels {
		if sl.pattern.MatchString(query) {
			return sl.label
		}
	}
	return "Web search: " + strings.TrimSpace(query)
}
