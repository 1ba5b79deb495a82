package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"afkari/internal/config"
	"afkari/internal/db"
	"afkari/internal/engine"
	"afkari/internal/gemini"
	"afkari/internal/migrate"
	"afkari/internal/store"
)

type stubClient struct {
	text string
	err  error
}

func (c *stubClient) Generate(ctx context.Context, prompt string) (gemini.Result, error) {
	if c.err != nil {
		return gemini.Result{}, c.err
	}
	return gemini.Result{Text: c.text, Model: "stub-model", LatencyMs: 7}, nil
}

type testEnv struct {
	Engine *engine.Engine
	Client *stubClient
	Ctx    context.Context
	now    time.Time
}

func (env *testEnv) Advance(d time.Duration) { env.now = env.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client := &stubClient{}
	eng := engine.New(conn, config.Default(), client)
	env := &testEnv{Engine: &eng, Client: client, Ctx: context.Background(), now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }
	eng.Now = clock
	eng.Store.Now = clock
	eng.Events.Now = clock
	return env
}

const v2Response = "```json\n" + `{
  "goal": "Choose a laptop",
  "constraints": ["budget 1500"],
  "criteria": ["price", "battery"],
  "options": [
    {"title": "A", "rationale": "cheap", "risks": ["slow"], "score": 60, "scoreExplanation": "ok"},
    {"title": "B", "rationale": "fast", "risks": [], "score": 80, "scoreExplanation": "good"},
    {"title": "C", "rationale": "light", "risks": [], "score": 70, "scoreExplanation": "fine"}
  ],
  "recommendation": {"bestOptionTitle": "B", "bestOptionIndex": 1, "confidence": 85, "reason": "fastest", "summary": "go with B"}
}` + "\n```"

const v1Response = `{
  "goal": "Plan the move",
  "constraints": [],
  "criteria": [],
  "options": [{"title": "Stay", "rationale": "", "risks": []}],
  "clarifyingQuestions": ["when?"],
  "actionPlan": [
    {"id": "s1", "text": "pack boxes", "done": false, "dueDate": null},
    {"id": "s2", "text": "book movers", "done": false, "dueDate": null}
  ]
}`

func TestAnalyzeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v2Response

	d, err := env.Engine.Analyze(env.Ctx, "which laptop should I buy", "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if d.ModelInfo.Provider != "gemini" || d.ModelInfo.Model != "stub-model" || d.ModelInfo.PromptVersion != "v2.0" {
		t.Fatalf("model info: %#v", d.ModelInfo)
	}
	if d.ModelInfo.LatencyMs != 7 {
		t.Fatalf("latency not threaded: %d", d.ModelInfo.LatencyMs)
	}

	got, err := env.Engine.Get(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Goal != d.Goal || got.Title != d.Title || len(got.Options) != 3 {
		t.Fatalf("stored record differs: %#v", got)
	}
	if got.Evaluation == nil || got.Evaluation.BestOptionIndex != 1 {
		t.Fatalf("evaluation lost: %#v", got.Evaluation)
	}
	if got.UpdatedAt < got.CreatedAt {
		t.Fatalf("updatedAt %q < createdAt %q", got.UpdatedAt, got.CreatedAt)
	}

	events, err := env.Engine.TailEvents(env.Ctx, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 1 || events[0].Type != "decision.created" || events[0].DecisionID != d.ID {
		t.Fatalf("events: %#v", events)
	}
}

func TestAnalyzeEmptyProblem(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Analyze(env.Ctx, "   \n", "en")
	if !errors.Is(err, engine.ErrEmptyProblem) {
		t.Fatalf("expected ErrEmptyProblem, got %v", err)
	}
}

func TestAnalyzeParseFailurePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = "I think you should follow your heart."

	_, err := env.Engine.Analyze(env.Ctx, "what now", "en")
	var pe *engine.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Raw != env.Client.text {
		t.Fatalf("raw text not surfaced: %q", pe.Raw)
	}
	list, err := env.Engine.List(env.Ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("no decision may be persisted after a parse failure")
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.Client.err = &gemini.UpstreamError{StatusCode: 429, Message: "quota"}
	_, err := env.Engine.Analyze(env.Ctx, "p", "en")
	var ue *gemini.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 429 {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestStepUpdateIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v1Response

	d, err := env.Engine.Analyze(env.Ctx, "moving plan", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	before, _ := env.Engine.Get(env.Ctx, d.ID)

	env.Advance(time.Second)
	if err := env.Engine.SetStepDone(env.Ctx, d.ID, "s1", true); err != nil {
		t.Fatalf("set step: %v", err)
	}
	after, err := env.Engine.Get(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !after.ActionPlan[0].Done || after.ActionPlan[1].Done {
		t.Fatalf("step flags: %#v", after.ActionPlan)
	}
	if after.Goal != before.Goal || after.Title != before.Title || len(after.Options) != len(before.Options) {
		t.Fatalf("step update must not touch other fields")
	}
	if after.CreatedAt != before.CreatedAt {
		t.Fatalf("createdAt is immutable")
	}
	if !(after.UpdatedAt > before.UpdatedAt) {
		t.Fatalf("updatedAt must strictly increase: %q -> %q", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestStepUpdateNoOps(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v1Response
	d, err := env.Engine.Analyze(env.Ctx, "moving plan", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	before, _ := env.Engine.Get(env.Ctx, d.ID)

	env.Advance(time.Second)
	if err := env.Engine.SetStepDone(env.Ctx, "nonexistent-id", "s1", true); err != nil {
		t.Fatalf("missing record must be a no-op: %v", err)
	}
	if err := env.Engine.SetStepDone(env.Ctx, d.ID, "nonexistent-step", true); err != nil {
		t.Fatalf("missing step must be a no-op: %v", err)
	}
	after, _ := env.Engine.Get(env.Ctx, d.ID)
	if after.UpdatedAt != before.UpdatedAt {
		t.Fatalf("no-op must not alter the stored record")
	}
	events, _ := env.Engine.TailEvents(env.Ctx, 10)
	for _, ev := range events {
		if ev.Type == "decision.step_updated" {
			t.Fatalf("no-op must not log an event")
		}
	}
}

func TestListOrder(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v2Response

	var ids []string
	for i := 0; i < 3; i++ {
		d, err := env.Engine.Analyze(env.Ctx, "problem", "en")
		if err != nil {
			t.Fatalf("analyze %d: %v", i, err)
		}
		ids = append(ids, d.ID)
		env.Advance(time.Minute)
	}
	list, err := env.Engine.List(env.Ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list: %d", len(list))
	}
	// most recent first
	if list[0].ID != ids[2] || list[1].ID != ids[1] || list[2].ID != ids[0] {
		t.Fatalf("wrong order: %v vs %v", []string{list[0].ID, list[1].ID, list[2].ID}, ids)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v2Response
	d, err := env.Engine.Analyze(env.Ctx, "p", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if err := env.Engine.Delete(env.Ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.Engine.Delete(env.Ctx, d.ID); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, err := env.Engine.Get(env.Ctx, d.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportCompleteness(t *testing.T) {
	env := newTestEnv(t)
	env.Client.text = v2Response
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.Analyze(env.Ctx, "p", "en"); err != nil {
			t.Fatalf("analyze: %v", err)
		}
		env.Advance(time.Second)
	}
	doc, err := env.Engine.Export(env.Ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Version != "1.0" || doc.ExportedAt == "" {
		t.Fatalf("envelope: %#v", doc)
	}
	list, _ := env.Engine.List(env.Ctx)
	if len(doc.Decisions) != len(list) {
		t.Fatalf("export has %d decisions, list has %d", len(doc.Decisions), len(list))
	}
	want := map[string]bool{}
	for _, d := range list {
		want[d.ID] = true
	}
	for _, d := range doc.Decisions {
		if !want[d.ID] {
			t.Fatalf("export contains unknown id %s", d.ID)
		}
	}
}
