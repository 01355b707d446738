// Package prompt renders patient-reported form data into the analysis prompt
// sent to the completion endpoint. Form fields arrive under two naming
// conventions (web form names and Flutter input_data names); an ordered alias
// table resolves each field to its first non-empty value.
package prompt

import (
	"fmt"
	"strings"

	"github.com/KiranTejz20005/masika/internal/config"
)

const promptHeader = `Act as a highly experienced senior gynecologist. Analyze the following patient data.

PATIENT DETAILS:
- Name: %s
- Age: %s
- Age of First Period: %s

MENSTRUAL CYCLE HISTORY:
- Cycle Length: %s days
- Period Duration: %s days
- Regularity: %s
- Missed Periods recently: %s

CURRENT SYMPTOMS:
- Flow Rate: %s
- Pads used per day: %s
- Blood Clots: %s
- Pain/Cramps: %s
- Weakness: %s

LIFESTYLE:
- Diet: %s

LAB REPORTS (OCR EXTRACTED):
- Hemoglobin/CBC Input: %s
- PDF Text Content: %s

USER COMPLAINT:
- %s

OUTPUT FORMAT:
You must strictly respond with a valid JSON object ONLY. No markdown, no introductory text.
JSON structure:
`

const detailedSchema = `{
    "diagnosis_result": "NORMAL" or "ABNORMAL",
    "reason_summary": "A friendly, empathetic summary starting with 'Dear [Name]'. Explain findings.",
    "plan_actions": "Steps to follow immediately.",
    "nutritional_advice": "What to eat.",
    "avoid_list": "What to avoid.",
    "doctor_visit_trigger": "When to visit a doctor urgently.",
    "detailed_abnormal_note": "Clinical reasoning.",
    "consult_recommendation": "Recommendation text."
}`

const compactSchema = `{
    "diagnosis_result": "NORMAL" or "ABNORMAL",
    "reason_summary": "A friendly, empathetic summary starting with 'Dear [Name]'. Explain findings.",
    "key_observation": "The single most important finding.",
    "suggested_next_steps": "Simple steps to follow next.",
    "important_note": "When to visit a doctor urgently."
}`

const abnormalRule = `

Rules: "ABNORMAL" if Hemoglobin < 11, pads > 8, severe pain, or missed periods.`

// Build renders the analysis prompt for the given form data and extracted lab
// text. The style picks which JSON schema the model is instructed to return.
func Build(data map[string]any, labText string, style string) string {
	schema := detailedSchema
	if style == config.StyleCompact {
		schema = compactSchema
	}

	body := fmt.Sprintf(promptHeader,
		lookup(data, "User", "name"),
		lookup(data, "", "current_age", "currentAge"),
		lookup(data, "", "first_period_age", "ageAtFirstPeriod"),
		lookup(data, "", "cycle_length", "cycleLength"),
		lookup(data, "", "period_length", "periodDuration"),
		lookup(data, "", "period_regularity", "regularity"),
		lookup(data, "", "missed_period", "missedPeriod"),
		lookup(data, "", "flow_rate", "flowRate"),
		lookup(data, "", "pads_used", "padsPerDay"),
		lookup(data, "", "clots", "bloodClots"),
		lookup(data, "", "pain", "painLevel"),
		lookup(data, "", "weakness", "weaknessDizziness"),
		lookup(data, "", "diet"),
		lookup(data, "", "hemoglobin_manual", "hemoglobin"),
		labText,
		lookup(data, "", "description", "otherSymptoms"),
	)

	return body + schema + abnormalRule
}

// lookup returns the first non-empty trimmed value among the given keys,
// canonical key first, or the fallback when every key is empty or absent.
func lookup(data map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if s := Stringify(data[k]); s != "" {
			return s
		}
	}
	return fallback
}

// Stringify converts a form value to its trimmed string form. Values coming
// from JSON bodies may be numbers or bools rather than strings.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
