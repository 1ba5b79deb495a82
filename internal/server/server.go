// Package server exposes the decision pipeline over HTTP for local UI
// shells. This is the same surface the CLI drives, behind an OpenAPI
// contract.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"afkari/internal/domain"
	"afkari/internal/engine"
	"afkari/internal/export"
	"afkari/internal/gemini"
	"afkari/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	// AuthToken, when set, requires a matching bearer token on every route
	// except health. There are no user accounts; this is a single shared
	// secret for exposing the API beyond localhost.
	AuthToken string
	Log       zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"parse_error"`
	Message string         `json:"message" example:"model did not return valid JSON"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Afkari API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Log))
	router.Use(authMiddleware(basePath, cfg.AuthToken))
	hcfg := huma.DefaultConfig("Afkari API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAnalyze(group, cfg.Engine)
	registerDecisions(group, cfg.Engine)
	registerExport(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}

func authMiddleware(basePath, token string) func(http.Handler) http.Handler {
	healthPath := basePath + "/health"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"unauthorized","message":"missing or invalid token"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps pipeline failures onto the HTTP surface. Parse
// failures carry the raw model text in the error details.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrEmptyProblem) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, gemini.ErrMissingAPIKey) {
		return newAPIError(http.StatusInternalServerError, "not_configured", "server not configured: missing "+gemini.APIKeyEnv, nil)
	}
	if errors.Is(err, gemini.ErrEmptyContent) {
		return newAPIError(http.StatusBadGateway, "empty_content", err.Error(), nil)
	}
	var ue *gemini.UpstreamError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusBadGateway, "upstream_error", ue.Error(), map[string]any{"status": ue.StatusCode})
	}
	var pe *engine.ParseError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusBadGateway, "parse_error", "model did not return valid JSON", map[string]any{"rawText": pe.Raw})
	}
	if errors.Is(err, engine.ErrBadPayload) {
		return newAPIError(http.StatusBadGateway, "bad_payload", err.Error(), nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAnalyze(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "analyze",
		Method:        http.MethodPost,
		Path:          "/analyze",
		Summary:       "Analyze a problem and persist the resulting decision",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AnalyzeRequest `json:"body"`
	}) (*struct {
		Body domain.Decision `json:"body"`
	}, error) {
		d, err := e.Analyze(ctx, input.Body.ProblemText, input.Body.Locale)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Decision `json:"body"`
		}{Body: d}, nil
	})
}

func registerDecisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-decisions",
		Method:      http.MethodGet,
		Path:        "/decisions",
		Summary:     "List decisions, most recent first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DecisionSummary `json:"body"`
	}, error) {
		items, err := e.List(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DecisionSummary `json:"body"`
		}{Body: summarizeAll(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-decision",
		Method:      http.MethodGet,
		Path:        "/decisions/{decision_id}",
		Summary:     "Get one decision",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DecisionID string `path:"decision_id"`
	}) (*struct {
		Body domain.Decision `json:"body"`
	}, error) {
		d, err := e.Get(ctx, input.DecisionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Decision `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-decision",
		Method:      http.MethodPut,
		Path:        "/decisions/{decision_id}",
		Summary:     "Upsert a full decision record",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		DecisionID string          `path:"decision_id"`
		Body       domain.Decision `json:"body"`
	}) (*struct {
		Body domain.Decision `json:"body"`
	}, error) {
		d := input.Body
		if d.ID == "" {
			d.ID = input.DecisionID
		}
		if d.ID != input.DecisionID {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body id does not match path", nil)
		}
		saved, err := e.Save(ctx, d)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Decision `json:"body"`
		}{Body: saved}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-step",
		Method:      http.MethodPatch,
		Path:        "/decisions/{decision_id}/steps/{step_id}",
		Summary:     "Set the done flag of one action-plan step",
		Description: "A missing decision, a decision without an action plan, or an unknown step id are silent no-ops.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		DecisionID string            `path:"decision_id"`
		StepID     string            `path:"step_id"`
		Body       UpdateStepRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.SetStepDone(ctx, input.DecisionID, input.StepID, input.Body.Done); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-decision",
		Method:        http.MethodDelete,
		Path:          "/decisions/{decision_id}",
		Summary:       "Delete one decision",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		DecisionID string `path:"decision_id"`
	}) (*struct{}, error) {
		if err := e.Delete(ctx, input.DecisionID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerExport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "export",
		Method:      http.MethodGet,
		Path:        "/export",
		Summary:     "Export every decision as one versioned document",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body export.Document `json:"body"`
	}, error) {
		doc, err := e.Export(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body export.Document `json:"body"`
		}{Body: doc}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "tail-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := e.TailEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
