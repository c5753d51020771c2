package analytics

import (
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sitelens/internal/events"
)

// normalizeCountryLabels expands ISO country codes into display names.
// Unrecognized codes are upper-cased as-is; "Unknown" passes through.
func normalizeCountryLabels(items []MetricCountResult) []MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	result := make([]MetricCountResult, len(items))
	for i, item := range items {
		name := item.Name
		if name != events.UnknownLabel {
			if country, err := countries.FindCountryByAlpha(name); err == nil {
				name = country.Name.Common
			} else {
				name = caser.String(name)
			}
		}
		result[i] = MetricCountResult{Name: name, Count: item.Count}
	}
	return result
}

// normalizeTitleLabels title-cases breakdown labels (device types, browsers).
// "Unknown" passes through untouched.
func normalizeTitleLabels(items []MetricCountResult) []MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)

	result := make([]MetricCountResult, len(items))
	for i, item := range items {
		name := item.Name
		if name != events.UnknownLabel {
			name = caser.String(name)
		}
		result[i] = MetricCountResult{Name: name, Count: item.Count}
	}
	return result
}
