// Package gemini calls the Google generative-language text endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"afkari/internal/config"
)

// APIKeyEnv is the environment variable holding the backend credential.
const APIKeyEnv = "GEMINI_API_KEY"

// Client talks to the generateContent endpoint for a fixed model and
// generation configuration. One failed attempt is reported as-is; there is
// no retry.
type Client struct {
	http   *resty.Client
	model  string
	apiKey string
	gen    generationConfig
	log    zerolog.Logger
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Result is the usable text of one model round-trip.
type Result struct {
	Text      string
	Model     string
	LatencyMs int64
}

// New builds a client from workspace config. The API key may be empty; the
// first Generate call then fails with ErrMissingAPIKey so the caller can
// surface a configuration error instead of a transport one.
func New(cfg *config.Config, apiKey string, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.Model.APIBase).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Duration(cfg.Model.TimeoutSeconds) * time.Second)
	return &Client{
		http:   http,
		model:  cfg.Model.Name,
		apiKey: apiKey,
		gen: generationConfig{
			Temperature:     cfg.Generation.Temperature,
			TopP:            cfg.Generation.TopP,
			TopK:            cfg.Generation.TopK,
			MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		},
		log: log,
	}
}

// Generate sends the prompt as a single user message and returns the
// concatenated text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrMissingAPIKey
	}

	body := generateRequest{
		Contents:         []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: c.gen,
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(&body).
		Post(fmt.Sprintf("/models/%s:generateContent", c.model))
	if err != nil {
		return Result{}, &UpstreamError{Message: err.Error()}
	}
	latency := time.Since(start).Milliseconds()

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil && resp.IsSuccess() {
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode(), Message: fmt.Sprintf("decode response: %v", err)}
	}
	if !resp.IsSuccess() {
		msg := resp.String()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		c.log.Warn().Int("status", resp.StatusCode()).Str("model", c.model).Msg("gemini call failed")
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode(), Message: msg}
	}

	var text string
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			text += p.Text
		}
	}
	if text == "" {
		// Typically safety filtering: the call succeeded but produced no parts.
		return Result{}, ErrEmptyContent
	}

	c.log.Debug().Int64("latency_ms", latency).Str("model", c.model).Msg("gemini call ok")
	return Result{Text: text, Model: c.model, LatencyMs: latency}, nil
}
