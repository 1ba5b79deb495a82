package server

import (
	"afkari/internal/domain"
)

// Request payloads

type AnalyzeRequest struct {
	ProblemText string `json:"problemText"`
	Locale      string `json:"locale,omitempty"`
}

type UpdateStepRequest struct {
	Done bool `json:"done"`
}

// Response payloads

type DecisionSummary struct {
	ID            string `json:"id"`
	CreatedAt     string `json:"createdAt" format:"date-time"`
	UpdatedAt     string `json:"updatedAt" format:"date-time"`
	Title         string `json:"title"`
	Goal          string `json:"goal"`
	OptionCount   int    `json:"option_count"`
	PromptVersion string `json:"promptVersion"`
	Legacy        bool   `json:"legacy"`
}

func summarize(d domain.Decision) DecisionSummary {
	return DecisionSummary{
		ID:            d.ID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Title:         d.Title,
		Goal:          d.Goal,
		OptionCount:   len(d.Options),
		PromptVersion: d.ModelInfo.PromptVersion,
		Legacy:        d.IsLegacy(),
	}
}

func summarizeAll(items []domain.Decision) []DecisionSummary {
	res := make([]DecisionSummary, 0, len(items))
	for _, d := range items {
		res = append(res, summarize(d))
	}
	return res
}
