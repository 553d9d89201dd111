package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/config"
)

var tracer = otel.Tracer("researchd.planner")

// Client is a Planner backed by an OpenAI-compatible chat completions
// endpoint.
type Client struct {
	cfg    config.PlannerConfig
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a planner client.
func NewClient(cfg config.PlannerConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one system+user exchange and returns the raw content.
func (c *Client) complete(ctx context.Context, operation, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "Client."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("model", c.cfg.Model))

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey.Value())
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("model returned %d: %s", resp.StatusCode, payload)
		span.RecordError(err)
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	content := parsed.Choices[0].Message.Content
	c.logger.Debug("model call complete",
		zap.String("operation", operation),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_chars", len(content)),
	)
	return content, nil
}

// Decompose implements Planner.
func (c *Client) Decompose(ctx context.Context, query string) (Decomposition, error) {
	if strings.TrimSpace(query) == "" {
		return Decomposition{}, ErrEmptyQuery
	}
	content, err := c.complete(ctx, "Decompose", decomposeSystemPrompt, query)
	if err != nil {
		return Decomposition{}, err
	}
	return parseDecomposition(content), nil
}

// Reflect implements Planner.
func (c *Client) Reflect(ctx context.Context, query, evidence string) (Reflection, error) {
	if strings.TrimSpace(query) == "" {
		return Reflection{}, ErrEmptyQuery
	}
	user := fmt.Sprintf("Question:\n%s\n\nEvidence:\n%s", query, evidence)
	content, err := c.complete(ctx, "Reflect", reflectSystemPrompt, user)
	if err != nil {
		return Reflection{}, err
	}
	return parseReflection(content), nil
}

// FinalAnswer implements Planner. The model answers in the tag
// protocol; a response without an <answer> tag counts as empty.
func (c *Client) FinalAnswer(ctx context.Context, query, evidence string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	user := fmt.Sprintf("Question:\n%s\n\nEvidence:\n%s", query, evidence)
	content, err := c.complete(ctx, "FinalAnswer", finalAnswerSystemPrompt, user)
	if err != nil {
		return "", err
	}
	answer := extractTag(content, "answer")
	if answer == "" {
		return "", fmt.Errorf("%w: no answer tag", ErrEmptyResponse)
	}
	return answer, nil
}

// Summarize implements Planner.
func (c *Client) Summarize(ctx context.Context, query, content string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	user := fmt.Sprintf("Question:\n%s\n\nContent:\n%s", query, content)
	return c.complete(ctx, "Summarize", summarizeSystemPrompt, user)
}

var _ Planner = (*Client)(nil)
