package domain

// Option is one candidate choice inside a Decision. Score fields are only
// populated for records produced with the v2 prompt schema.
type Option struct {
	Title            string   `json:"title"`
	Rationale        string   `json:"rationale"`
	Risks            []string `json:"risks"`
	Score            float64  `json:"score,omitempty"`
	ScoreExplanation string   `json:"scoreExplanation,omitempty"`
}

// Evaluation is the model's best-option pick over a Decision's options.
// BestOptionIndex is positional into Decision.Options and is clamped into
// range at assembly time.
type Evaluation struct {
	BestOptionTitle string  `json:"bestOptionTitle"`
	BestOptionIndex int     `json:"bestOptionIndex"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
	Summary         string  `json:"summary"`
}

// ActionStep is a to-do item attached to a legacy (v1 prompt schema)
// Decision. Done is the only field mutable after creation.
type ActionStep struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Done    bool    `json:"done"`
	DueDate *string `json:"dueDate"`
}

// ModelInfo records provenance of the model round-trip that produced a
// Decision. PromptVersion tells old and new record shapes apart.
type ModelInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"promptVersion"`
	LatencyMs     int64  `json:"latencyMs,omitempty"`
}

// Decision is the persisted record for one analyzed problem. Two shapes
// coexist without migration: v1 records carry ClarifyingQuestions/ActionPlan,
// v2 records carry Evaluation and scored options. Consumers branch on shape
// at read time.
type Decision struct {
	ID                  string       `json:"id"`
	CreatedAt           string       `json:"createdAt" format:"date-time"`
	UpdatedAt           string       `json:"updatedAt" format:"date-time"`
	Title               string       `json:"title"`
	ProblemText         string       `json:"problemText"`
	Goal                string       `json:"goal"`
	Constraints         []string     `json:"constraints"`
	Criteria            []string     `json:"criteria"`
	Options             []Option     `json:"options"`
	Evaluation          *Evaluation  `json:"evaluation,omitempty"`
	ClarifyingQuestions []string     `json:"clarifyingQuestions,omitempty"`
	ActionPlan          []ActionStep `json:"actionPlan,omitempty"`
	ModelInfo           ModelInfo    `json:"modelInfo"`
}

// IsLegacy reports whether the record is v1-shaped (action plan or
// clarifying questions, no evaluation).
func (d Decision) IsLegacy() bool {
	return d.Evaluation == nil && (len(d.ActionPlan) > 0 || len(d.ClarifyingQuestions) > 0)
}

// Event is one append-only log entry recording a store mutation.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	DecisionID string `json:"decision_id,omitempty"`
	Payload    string `json:"payload_json"`
}
