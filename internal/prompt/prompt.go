// Package prompt builds the model instruction for one analysis request.
// Prompts are deterministic: identical inputs always yield identical text.
package prompt

import (
	"fmt"
	"strings"
)

// Prompt schema revisions. The version used for a request is persisted in
// the resulting record's modelInfo.promptVersion, which is how old and new
// record shapes are told apart later. Records created under either version
// coexist without migration.
const (
	VersionV1 = "v1.0"
	VersionV2 = "v2.0"
)

const schemaV1 = `{
  "goal": "string",
  "constraints": ["string", ...],
  "criteria": ["string", ...],
  "options": [
    { "title": "string", "rationale": "string", "risks": ["string", ...] }
  ],
  "clarifyingQuestions": ["string", ...],
  "actionPlan": [
    { "id": "string", "text": "string", "done": false, "dueDate": null }
  ]
}`

const schemaV2 = `{
  "goal": "string",
  "constraints": ["string", ...],
  "criteria": ["string", ...],
  "options": [
    { "title": "string", "rationale": "string", "risks": ["string", ...], "score": 0, "scoreExplanation": "string" }
  ],
  "recommendation": {
    "bestOptionTitle": "string",
    "bestOptionIndex": 0,
    "confidence": 0,
    "reason": "string",
    "summary": "string"
  }
}`

const rulesV1 = `- Provide 3-6 distinct options.
- Provide 5-8 concrete action steps.
- Keep steps atomic and actionable (verb-first).
- Do not include any text outside the JSON.
- Avoid personal data. Assume anonymous input.
- If the input is unclear, infer reasonable defaults and include clarifyingQuestions.`

const rulesV2 = `- Provide 3-6 distinct options.
- Score every option from 0 to 100 against the criteria; scores need not sum to 100.
- Explain each score briefly in scoreExplanation.
- Pick exactly one best option; bestOptionIndex is the zero-based position in options.
- Confidence is 0-100.
- Do not include any text outside the JSON.
- Avoid personal data. Assume anonymous input.`

// Build returns the instruction string for the given problem text, response
// locale and prompt schema version. Unknown versions fall back to the
// current schema. An empty locale defaults to "en".
func Build(problemText, locale, version string) string {
	if locale == "" {
		locale = "en"
	}
	schema, rules := schemaV2, rulesV2
	if version == VersionV1 {
		schema, rules = schemaV1, rulesV1
	}
	return fmt.Sprintf(`You are Afkari, a privacy-first AI decision coach.

TASK:
Analyze the user's problem and output ONLY valid minified JSON (no markdown, no explanations).
Language: Respond in %s. Keep it clear and concise.

SCHEMA:
%s

RULES:
%s

USER_PROBLEM:
"""%s"""
`, locale, schema, rules, strings.TrimSpace(problemText))
}
