package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"afkari/internal/domain"
	"afkari/internal/store"
)

// ErrBadPayload means the model output parsed as JSON but a structurally
// required field cannot be coerced into the record schema. Missing optional
// fields never trigger it; they get defaults instead.
var ErrBadPayload = errors.New("model output does not match expected schema")

const maxTitleLen = 90

// Assemble turns a normalized payload into a Decision with a fresh id and
// matching timestamps. Either the whole record is built or an error is
// returned; nothing partial escapes.
func Assemble(payload any, problemText string, info domain.ModelInfo, now time.Time) (domain.Decision, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return domain.Decision{}, fmt.Errorf("%w: output is not a JSON object", ErrBadPayload)
	}

	options, err := assembleOptions(obj["options"])
	if err != nil {
		return domain.Decision{}, err
	}

	ts := now.UTC().Format(store.TimeLayout)
	goal := asString(obj["goal"])
	d := domain.Decision{
		ID:          uuid.NewString(),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Title:       deriveTitle(goal),
		ProblemText: problemText,
		Goal:        goal,
		Constraints: asStringSlice(obj["constraints"]),
		Criteria:    asStringSlice(obj["criteria"]),
		Options:     options,
		ModelInfo:   info,
	}

	if rec, ok := obj["recommendation"].(map[string]any); ok {
		// No evaluation without options: bestOptionIndex would be unresolvable.
		if len(options) > 0 {
			d.Evaluation = assembleEvaluation(rec, options)
		}
	} else {
		d.ClarifyingQuestions = asStringSlice(obj["clarifyingQuestions"])
		d.ActionPlan = assembleActionPlan(obj["actionPlan"])
	}
	return d, nil
}

func deriveTitle(goal string) string {
	if goal == "" {
		return "Decision"
	}
	runes := []rune(goal)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen])
	}
	return goal
}

func assembleOptions(v any) ([]domain.Option, error) {
	if v == nil {
		return []domain.Option{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: options is not a list", ErrBadPayload)
	}
	options := make([]domain.Option, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: options[%d] is not an object", ErrBadPayload, i)
		}
		options = append(options, domain.Option{
			Title:            asString(obj["title"]),
			Rationale:        asString(obj["rationale"]),
			Risks:            asStringSlice(obj["risks"]),
			Score:            asFloat(obj["score"]),
			ScoreExplanation: asString(obj["scoreExplanation"]),
		})
	}
	return options, nil
}

func assembleEvaluation(rec map[string]any, options []domain.Option) *domain.Evaluation {
	idx := 0
	if f, ok := rec["bestOptionIndex"].(float64); ok {
		n := int(f)
		if n >= 0 && n < len(options) {
			idx = n
		}
	}
	title := asString(rec["bestOptionTitle"])
	if title == "" {
		title = options[idx].Title
	}
	if title == "" {
		title = "Best option"
	}
	return &domain.Evaluation{
		BestOptionTitle: title,
		BestOptionIndex: idx,
		Confidence:      clamp(asFloat(rec["confidence"]), 0, 100),
		Reason:          asString(rec["reason"]),
		Summary:         asString(rec["summary"]),
	}
}

func assembleActionPlan(v any) []domain.ActionStep {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	steps := make([]domain.ActionStep, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := domain.ActionStep{
			ID:   asString(obj["id"]),
			Text: asString(obj["text"]),
		}
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		if done, ok := obj["done"].(bool); ok {
			step.Done = done
		}
		if due := asString(obj["dueDate"]); due != "" {
			step.DueDate = &due
		}
		steps = append(steps, step)
	}
	return steps
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	res := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
