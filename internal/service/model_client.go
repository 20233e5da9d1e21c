package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lsendel/LLMRank-app-sub001/internal/config"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// ContentJudge rates page text. The content scorer depends on this interface
// so tests can stub the model provider.
type ContentJudge interface {
	JudgeContent(ctx context.Context, text string) (*models.ContentJudgment, error)
	ModelName() string
}

const judgmentPrompt = `You are rating the quality of a web page's text content for readers and AI assistants.
Rate the following page text on three axes from 0 to 100:
- clarity: how clearly the text communicates
- depth: how thoroughly it covers its topic
- relevance: how focused the text stays on one coherent topic

Respond with ONLY a JSON object, no prose, in this exact shape:
{"clarity": <int>, "depth": <int>, "relevance": <int>, "overall": <int>, "summary": "<one sentence>"}

Page text:
`

// Pages are truncated before sending so a single giant page cannot blow the
// provider's context window.
const maxJudgmentChars = 24000

// ModelClient calls a model provider for content-quality judgments. It speaks
// the OpenAI chat-completions shape (OpenAI, OpenRouter, most gateways) and
// the Anthropic messages shape.
type ModelClient struct {
	provider string
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

// NewModelClient creates a model client from configuration.
func NewModelClient(cfg *config.Config, logger *slog.Logger) *ModelClient {
	baseURL := cfg.ModelBaseURL
	if baseURL == "" {
		switch cfg.ModelProvider {
		case "anthropic":
			baseURL = "https://api.anthropic.com"
		case "openai":
			baseURL = "https://api.openai.com/v1"
		default:
			baseURL = "https://openrouter.ai/api/v1"
		}
	}
	return &ModelClient{
		provider: cfg.ModelProvider,
		apiKey:   cfg.ModelAPIKey,
		model:    cfg.ModelName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: cfg.ModelTimeout},
		logger:   logger.With("component", "model-client"),
	}
}

// ModelName returns the configured model identifier.
func (c *ModelClient) ModelName() string {
	return c.model
}

// JudgeContent sends page text to the provider and parses the structured
// judgment from its response.
func (c *ModelClient) JudgeContent(ctx context.Context, text string) (*models.ContentJudgment, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no API key configured for model provider %s", c.provider)
	}
	if len(text) > maxJudgmentChars {
		text = text[:maxJudgmentChars]
	}
	prompt := judgmentPrompt + text

	var content string
	var err error
	if c.provider == "anthropic" {
		content, err = c.callAnthropic(ctx, prompt)
	} else {
		content, err = c.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	judgment, err := parseJudgment(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model judgment: %w", err)
	}
	judgment.Model = c.model
	return judgment, nil
}

func (c *ModelClient) callOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
		"max_tokens":  512,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model provider returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *ModelClient) callAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": 512,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model provider returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal model response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("model response contained no content blocks")
	}
	return parsed.Content[0].Text, nil
}

// parseJudgment extracts the JSON object from the model's reply, tolerating
// code fences and surrounding prose.
func parseJudgment(content string) (*models.ContentJudgment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply: %s", truncate(content, 120))
	}

	var judgment models.ContentJudgment
	if err := json.Unmarshal([]byte(content[start:end+1]), &judgment); err != nil {
		return nil, err
	}

	judgment.Clarity = clampJudgmentScore(judgment.Clarity)
	judgment.Depth = clampJudgmentScore(judgment.Depth)
	judgment.Relevance = clampJudgmentScore(judgment.Relevance)
	if judgment.Overall == 0 {
		judgment.Overall = (judgment.Clarity + judgment.Depth + judgment.Relevance) / 3
	}
	judgment.Overall = clampJudgmentScore(judgment.Overall)
	return &judgment, nil
}

func clampJudgmentScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
