package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/upstream"
	"github.com/sydlexius/songcanon/internal/version"
)

// maxRerankCandidates bounds how many candidates are sent to the model.
const maxRerankCandidates = 5

// RerankCandidate is the fixed-shape candidate record sent to the model.
type RerankCandidate struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Year         int    `json:"year,omitempty"`
	ReleaseTitle string `json:"release_title,omitempty"`
}

// Reranker asks an OpenAI-compatible chat-completion endpoint to order a
// small candidate set best-first. It is disabled without an API key.
type Reranker struct {
	client  *http.Client
	limiter *upstream.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	apiKey  string
	model   string
}

// NewReranker creates a reranker from validation config.
func NewReranker(cfg config.ValidationConfig, limiter *upstream.RateLimiterMap, logger *slog.Logger) *Reranker {
	return &Reranker{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("client", "reranker")),
		baseURL: strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
	}
}

// Enabled reports whether an API key is configured.
func (r *Reranker) Enabled() bool {
	return r.apiKey != ""
}

// Rerank returns candidate ids ordered best-first for the query. At most
// maxRerankCandidates are submitted; the returned ids are exactly the
// model's ordering, unfiltered. The caller drops unknown ids and appends
// unmentioned candidates.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]string, error) {
	if !r.Enabled() {
		return nil, &upstream.ErrAuthRequired{Source: upstream.SourceLLM}
	}
	if len(candidates) > maxRerankCandidates {
		candidates = candidates[:maxRerankCandidates]
	}

	prompt, err := buildPrompt(query, candidates)
	if err != nil {
		return nil, err
	}

	content, err := r.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Ranking []string `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}
	return parsed.Ranking, nil
}

func buildPrompt(query string, candidates []RerankCandidate) (string, error) {
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding candidates: %w", err)
	}
	return fmt.Sprintf(`A user searched for the song %q. Rank the following candidate recordings from most to least likely to be the culturally canonical recording the user means.

Candidates:
%s

Respond with only a JSON object of the form {"ranking": ["id", ...]} listing every candidate id, best first.`, query, data), nil
}

// chat completion request/response shapes (OpenAI-compatible).
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *Reranker) complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx, upstream.SourceLLM); err != nil {
		return "", &upstream.ErrUnavailable{
			Source: upstream.SourceLLM,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You identify canonical song recordings. Respond only with JSON."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("songcanon/%s", version.Version))

	r.logger.Debug("requesting completion", slog.String("model", r.model))

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &upstream.ErrUnavailable{
			Source: upstream.SourceLLM,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &upstream.ErrAuthRequired{Source: upstream.SourceLLM}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &upstream.ErrUnavailable{
			Source: upstream.SourceLLM,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &upstream.ErrUnavailable{
			Source: upstream.SourceLLM,
			Cause:  fmt.Errorf("empty completion"),
		}
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON trims markdown code fences and surrounding prose, returning
// the first top-level JSON object in the content.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return content
	}
	return content[start : end+1]
}
