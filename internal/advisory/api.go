package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"enterprise_sim/internal/domain"
)

const (
	defaultReasoningEffort = "low"
	defaultAPIRetries      = 2
	defaultAPIRetryBackoff = 1500 * time.Millisecond
	defaultAPITimeout      = 90 * time.Second
	defaultMaxOutputBytes  = 256 * 1024
	defaultMaxOutputTokens = 4000
	maxStatusBody          = 4 * 1024
)

type APIAdvisorConfig struct {
	Endpoint        string
	Model           string
	ReasoningEffort string
	AuthToken       string
	Timeout         time.Duration
	Retries         int
	RetryBackoff    time.Duration
	MaxOutputBytes  int
	MaxOutputTokens int
	Logger          *log.Logger
	Client          *http.Client
}

// APIAdvisor talks to an OpenAI Responses compatible streaming endpoint.
type APIAdvisor struct {
	endpoint       string
	model          string
	effort         string
	authToken      string
	retries        int
	retryBackoff   time.Duration
	maxOutputBytes int
	maxTokens      int
	logger         *log.Logger
	client         *http.Client
}

func NewAPIAdvisor(cfg APIAdvisorConfig) (*APIAdvisor, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("empty API endpoint")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid API endpoint %q: %w", endpoint, err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("empty model")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: positiveOr(cfg.Timeout, defaultAPITimeout)}
	}

	return &APIAdvisor{
		endpoint:       endpoint,
		model:          model,
		effort:         reasoningEffort(cfg.ReasoningEffort),
		authToken:      strings.TrimSpace(cfg.AuthToken),
		retries:        positiveOr(cfg.Retries, defaultAPIRetries),
		retryBackoff:   positiveOr(cfg.RetryBackoff, defaultAPIRetryBackoff),
		maxOutputBytes: positiveOr(cfg.MaxOutputBytes, defaultMaxOutputBytes),
		maxTokens:      positiveOr(cfg.MaxOutputTokens, defaultMaxOutputTokens),
		logger:         cfg.Logger,
		client:         client,
	}, nil
}

// operation is one of the four advisory calls. Operations that tolerate an
// empty model reply get the zero value instead of an error.
type operation struct {
	name         string
	instructions string
	allowEmpty   bool
}

var (
	opDecompose = operation{name: "decompose", instructions: jsonInstructions}
	opNegotiate = operation{name: "negotiate", instructions: jsonInstructions}
	opSummarize = operation{name: "summarize", instructions: textInstructions, allowEmpty: true}
	opPredict   = operation{name: "predict", instructions: jsonInstructions, allowEmpty: true}
)

// specReply mirrors domain.TaskSpec but accepts fractional budgets.
type specReply struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	RequiredCapabilities []string        `json:"requiredCapabilities"`
	Budget               float64         `json:"budget"`
	Priority             domain.Priority `json:"priority"`
}

type bidReply struct {
	WinnerID     string  `json:"winnerId"`
	Reason       string  `json:"reason"`
	AdjustedCost float64 `json:"adjustedCost"`
}

func (a *APIAdvisor) Decompose(ctx context.Context, title, constraints string) ([]domain.TaskSpec, error) {
	replies, err := askJSON[[]specReply](ctx, a, opDecompose, decomposePrompt(title, constraints))
	if err != nil {
		return nil, err
	}
	specs := make([]domain.TaskSpec, 0, len(replies))
	for _, r := range replies {
		specs = append(specs, domain.TaskSpec{
			Title:                r.Title,
			Description:          r.Description,
			RequiredCapabilities: r.RequiredCapabilities,
			Budget:               int(math.Round(r.Budget)),
			Priority:             r.Priority,
		})
	}
	return specs, nil
}

func (a *APIAdvisor) Negotiate(ctx context.Context, task domain.Task, candidates []domain.Agent) (Bid, error) {
	out, err := askJSON[bidReply](ctx, a, opNegotiate, negotiatePrompt(task, candidates))
	if err != nil {
		return Bid{}, err
	}
	if strings.TrimSpace(out.WinnerID) == "" {
		return Bid{}, fmt.Errorf("%w: negotiate: empty winnerId", ErrCallFailed)
	}
	return Bid{
		WinnerID:     strings.TrimSpace(out.WinnerID),
		Reason:       strings.TrimSpace(out.Reason),
		AdjustedCost: int(math.Round(out.AdjustedCost)),
	}, nil
}

// SummarizeHealth returns an empty string, not an error, when the model
// produces no text.
func (a *APIAdvisor) SummarizeHealth(ctx context.Context, metrics domain.MetricsSnapshot, recentLogs []domain.LogEntry) (string, error) {
	return a.ask(ctx, opSummarize, healthPrompt(metrics, recentLogs))
}

func (a *APIAdvisor) PredictInsights(ctx context.Context, in InsightInput) ([]Insight, error) {
	return askJSON[[]Insight](ctx, a, opPredict, insightPrompt(in))
}

// askJSON decodes the model reply for op into T.
func askJSON[T any](ctx context.Context, a *APIAdvisor, op operation, prompt string) (T, error) {
	var out T
	raw, err := a.ask(ctx, op, prompt)
	if err != nil || raw == "" {
		return out, err
	}
	if err := decodeModelJSON(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %w; output: %s", ErrCallFailed, op.name, err, trim(raw, 400))
	}
	return out, nil
}

// ask sends prompt for op, retrying throttled, 5xx and network failures.
// Every error wraps ErrCallFailed.
func (a *APIAdvisor) ask(ctx context.Context, op operation, prompt string) (string, error) {
	body, err := json.Marshal(a.request(op, prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %s: encode request: %w", ErrCallFailed, op.name, err)
	}
	for attempt := 1; ; attempt++ {
		text, err := a.send(ctx, body)
		switch {
		case err == nil:
			return text, nil
		case errors.Is(err, errEmptyOutput) && op.allowEmpty:
			return "", nil
		case attempt > a.retries || !retryable(err):
			return "", fmt.Errorf("%w: %s: %w", ErrCallFailed, op.name, err)
		}
		wait := time.Duration(attempt) * a.retryBackoff
		a.logger.Printf("advisory retry op=%s attempt=%d wait=%s reason=%v", op.name, attempt, wait, err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrCallFailed, op.name, ctx.Err())
		case <-time.After(wait):
		}
	}
}

type modelRequest struct {
	Model           string       `json:"model"`
	Instructions    string       `json:"instructions"`
	Input           []modelInput `json:"input"`
	Reasoning       effortParam  `json:"reasoning"`
	MaxOutputTokens int          `json:"max_output_tokens"`
	Stream          bool         `json:"stream"`
}

type effortParam struct {
	Effort string `json:"effort"`
}

type modelInput struct {
	Role    string      `json:"role"`
	Content []inputPart `json:"content"`
}

type inputPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (a *APIAdvisor) request(op operation, prompt string) modelRequest {
	return modelRequest{
		Model:           a.model,
		Instructions:    op.instructions,
		Input:           []modelInput{{Role: "user", Content: []inputPart{{Type: "input_text", Text: prompt}}}},
		Reasoning:       effortParam{Effort: a.effort},
		MaxOutputTokens: a.maxTokens,
		Stream:          true,
	}
}

func (a *APIAdvisor) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if a.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.authToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	return streamText(resp.Body, a.maxOutputBytes)
}

func reasoningEffort(value string) string {
	switch effort := strings.ToLower(strings.TrimSpace(value)); effort {
	case "none", "low", "medium", "high":
		return effort
	default:
		return defaultReasoningEffort
	}
}

// statusError is a non-2xx reply from the model endpoint.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model endpoint returned %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF)
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
