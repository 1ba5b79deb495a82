// Package engine orchestrates the analyze-and-save pipeline: prompt build,
// model call, response normalization, record assembly and persistence. The
// CLI and HTTP server both drive it through the same entry points.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"afkari/internal/config"
	"afkari/internal/domain"
	"afkari/internal/events"
	"afkari/internal/export"
	"afkari/internal/gemini"
	"afkari/internal/prompt"
	"afkari/internal/store"
)

// ErrEmptyProblem means the caller supplied no usable problem text. No
// backend call is attempted.
var ErrEmptyProblem = errors.New("problemText is required")

// ModelClient is the generative backend the engine analyzes problems with.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (gemini.Result, error)
}

type Engine struct {
	DB     *sql.DB
	Store  store.Store
	Events events.Writer
	Config *config.Config
	Client ModelClient
	Now    func() time.Time
}

func New(conn *sql.DB, cfg *config.Config, client ModelClient) Engine {
	return Engine{
		DB:     conn,
		Store:  store.Store{DB: conn},
		Events: events.Writer{DB: conn},
		Config: cfg,
		Client: client,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Analyze runs one full analyze-and-save flow. The record is fully
// assembled before the store write begins, and the write completes before
// the record is returned; no reader ever observes a partial Decision. Any
// failure before the write persists nothing.
func (e Engine) Analyze(ctx context.Context, problemText, locale string) (domain.Decision, error) {
	if strings.TrimSpace(problemText) == "" {
		return domain.Decision{}, ErrEmptyProblem
	}
	if locale == "" {
		locale = e.Config.Prompt.Locale
	}
	version := e.Config.Prompt.Version

	res, err := e.Client.Generate(ctx, prompt.Build(problemText, locale, version))
	if err != nil {
		return domain.Decision{}, err
	}

	payload, err := Normalize(res.Text)
	if err != nil {
		return domain.Decision{}, err
	}

	model := res.Model
	if model == "" {
		model = e.Config.Model.Name
	}
	info := domain.ModelInfo{
		Provider:      e.Config.Model.Provider,
		Model:         model,
		PromptVersion: version,
		LatencyMs:     res.LatencyMs,
	}
	d, err := Assemble(payload, problemText, info, e.now())
	if err != nil {
		return domain.Decision{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Decision{}, err
	}
	defer tx.Rollback()
	saved, err := e.Store.PutTx(ctx, tx, d)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := e.Events.Append(ctx, tx, "decision.created", saved.ID, events.EventPayload{
		"promptVersion": version,
		"latency_ms":    res.LatencyMs,
	}); err != nil {
		return domain.Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Decision{}, err
	}
	return saved, nil
}

// Save upserts a full record and logs the write.
func (e Engine) Save(ctx context.Context, d domain.Decision) (domain.Decision, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Decision{}, err
	}
	defer tx.Rollback()
	saved, err := e.Store.PutTx(ctx, tx, d)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := e.Events.Append(ctx, tx, "decision.saved", saved.ID, nil); err != nil {
		return domain.Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Decision{}, err
	}
	return saved, nil
}

func (e Engine) List(ctx context.Context) ([]domain.Decision, error) {
	return e.Store.List(ctx)
}

func (e Engine) Get(ctx context.Context, id string) (domain.Decision, error) {
	return e.Store.Get(ctx, id)
}

// SetStepDone updates one action-plan step. Missing records, records
// without an action plan and unknown step ids are silent no-ops; no event
// is logged for them.
func (e Engine) SetStepDone(ctx context.Context, id, stepID string, done bool) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	updated, err := e.Store.UpdateStepTx(ctx, tx, id, stepID, done)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}
	if err := e.Events.Append(ctx, tx, "decision.step_updated", id, events.EventPayload{
		"step_id": stepID,
		"done":    done,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a record. Deleting an unknown id is a no-op and logs
// nothing.
func (e Engine) Delete(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.Store.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := e.Store.DeleteTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "decision.deleted", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Export serializes the full store into one versioned document.
func (e Engine) Export(ctx context.Context) (export.Document, error) {
	return export.All(ctx, e.Store, e.now())
}

// TailEvents returns the most recent log entries, newest first.
func (e Engine) TailEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	return e.Events.Tail(ctx, limit)
}
