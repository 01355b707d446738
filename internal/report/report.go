// Package report normalizes a model reply into the fields the mobile client
// renders. Lookups are total: a reply missing every expected key still yields
// a prediction and a usable (possibly fallback) report.
package report

import (
	"strings"

	"github.com/KiranTejz20005/masika/internal/config"
	"github.com/KiranTejz20005/masika/internal/prompt"
)

// NoContentFallback is returned by the compact composition when the reply
// carries no narrative fields at all.
const NoContentFallback = "No report content available."

// Prediction reads diagnosis_result from the reply, upper-cased and trimmed.
// Anything other than NORMAL or ABNORMAL (absent, null, free text) maps to
// NORMAL.
func Prediction(reply map[string]any) string {
	diagnosis := strings.ToUpper(prompt.Stringify(reply["diagnosis_result"]))
	if diagnosis != "NORMAL" && diagnosis != "ABNORMAL" {
		return "NORMAL"
	}
	return diagnosis
}

// Compose builds the single report string for the client. The style must
// match the template that produced the reply, but each section lookup falls
// back across both template variants' field names so a mismatched reply still
// renders.
func Compose(reply map[string]any, style string) string {
	if style == config.StyleCompact {
		return composeSections(reply)
	}
	return composeFlat(reply)
}

// composeFlat joins the detailed-template narrative fields as paragraphs.
func composeFlat(reply map[string]any) string {
	parts := []string{}
	for _, key := range []string{
		"reason_summary",
		"plan_actions",
		"nutritional_advice",
		"avoid_list",
		"doctor_visit_trigger",
		"consult_recommendation",
	} {
		if val := prompt.Stringify(reply[key]); val != "" {
			parts = append(parts, val)
		}
	}
	if len(parts) == 0 {
		return prompt.Stringify(reply["reason_summary"])
	}
	return strings.Join(parts, "\n\n")
}

// composeSections emits "<Heading>\n<value>" blocks for the compact template,
// falling back to the detailed template's field names per section.
func composeSections(reply map[string]any) string {
	sections := []struct {
		heading string
		keys    []string
	}{
		{"Summary", []string{"reason_summary"}},
		{"Key observation", []string{"key_observation", "detailed_abnormal_note"}},
		{"Suggested next steps", []string{"suggested_next_steps", "plan_actions"}},
		{"Important note", []string{"important_note", "doctor_visit_trigger", "consult_recommendation"}},
	}

	parts := []string{}
	for _, s := range sections {
		for _, key := range s.keys {
			if val := prompt.Stringify(reply[key]); val != "" {
				parts = append(parts, s.heading+"\n"+val)
				break
			}
		}
	}

	if len(parts) == 0 {
		if summary := prompt.Stringify(reply["reason_summary"]); summary != "" {
			return summary
		}
		return NoContentFallback
	}
	return strings.Join(parts, "\n\n")
}
