// Package wellness generates the guardrailed plain-text wellness report: a
// fixed system instruction restricts the model to health and wellness topics
// and forbids markdown in the output.
package wellness

import (
	"context"
	"sort"
	"strings"

	"github.com/KiranTejz20005/masika/internal/prompt"
)

const systemPrompt = `You are a wellness assistant for Masika, a menstrual and reproductive health app.
Your role is to provide clear, supportive, and medically-grounded wellness information only.
- Base your response strictly on the user's provided health inputs and any lab/cycle data they share.
- Use plain language. Do not diagnose diseases or replace a doctor.
- Recommend consulting a healthcare provider when appropriate.
- Keep the tone professional, empathetic, and non-judgmental.
- Structure your response as a short wellness report: a brief summary, key observations, and simple next steps or suggestions.
- Do not answer questions unrelated to health, wellness, or the data provided.

Formatting rules (important): Write in PLAIN TEXT ONLY. Do not use any markdown or symbols:
- No asterisks (** or *) for bold. Write section headings as a short line on their own (e.g. "Summary" then a blank line then the summary text).
- No hash symbols (#) for headings.
- No hyphens (-) or asterisks (*) as bullet points. Use simple numbered lines (1. 2. 3.) or short paragraphs instead.
- No underscores for emphasis. Just use normal sentences.
Output only clean, readable text with section headings on their own line and normal paragraphs below.`

// Fixed sampling parameters for report generation; deliberately cooler and
// shorter than the diagnosis call.
const (
	temperature = 0.5
	topP        = 0.9
	maxTokens   = 2048
)

// Completer is the subset of the completion client the generator needs.
type Completer interface {
	Configured() bool
	CompleteText(ctx context.Context, system, user string, temperature, topP float64, maxTokens int) (string, error)
}

// Generate produces a wellness report from the screening result and the raw
// form inputs. It returns "" without calling upstream when no API key is
// configured, and "" with the error when the call fails.
func Generate(ctx context.Context, client Completer, inputData map[string]any, prediction string) (string, error) {
	if !client.Configured() {
		return "", nil
	}

	text, err := client.CompleteText(ctx, systemPrompt, buildUserMessage(inputData, prediction),
		temperature, topP, maxTokens)
	if err != nil {
		return "", err
	}
	return text, nil
}

// buildUserMessage turns form data and the screening result into a single
// prompt. Inputs are sorted by key so the message is deterministic.
func buildUserMessage(inputData map[string]any, prediction string) string {
	lines := []string{
		"Based on the following user inputs and screening result, write a short wellness report.",
		"",
		"Screening result: " + prediction,
		"",
		"User inputs:",
	}

	keys := make([]string, 0, len(inputData))
	for k := range inputData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if v := prompt.Stringify(inputData[k]); v != "" {
			lines = append(lines, "- "+k+": "+v)
		}
	}

	lines = append(lines, "",
		"Provide a concise wellness-oriented report in PLAIN TEXT ONLY: no markdown, no ** for bold, "+
			"no # or - or * for lists. Use short section headings on their own line (e.g. Summary, Key observations, "+
			"Next steps) followed by normal sentences. No asterisks or bullet symbols.")

	return strings.Join(lines, "\n")
}
