// Package clients implements the HTTP-backed collaborators: availability
// lookup, order creation, and the assistant completion service.
package clients

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

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// Config describes one collaborator endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{Timeout: timeout}
}

// postJSON sends one JSON request and decodes the JSON response into out.
func postJSON(ctx context.Context, client *http.Client, cfg Config, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(cfg.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// AvailabilityClient checks booking availability over HTTP.
type AvailabilityClient struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewAvailabilityClient(logger *slog.Logger, cfg Config) *AvailabilityClient {
	return &AvailabilityClient{
		cfg:    cfg,
		client: cfg.httpClient(),
		logger: logger.With("module", "availability_client"),
	}
}

func (c *AvailabilityClient) CheckAvailability(ctx context.Context, req protocol.AvailabilityRequest) (protocol.AvailabilityResult, error) {
	var result protocol.AvailabilityResult

	if err := postJSON(ctx, c.client, c.cfg, "/availability/check", req, &result); err != nil {
		return protocol.AvailabilityResult{}, fmt.Errorf("check availability: %w", err)
	}

	c.logger.DebugContext(ctx, "Availability checked",
		"date", req.Date, "time", req.Time, "available", result.Available)

	return result, nil
}

// OrderClient creates orders over HTTP.
type OrderClient struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewOrderClient(logger *slog.Logger, cfg Config) *OrderClient {
	return &OrderClient{
		cfg:    cfg,
		client: cfg.httpClient(),
		logger: logger.With("module", "order_client"),
	}
}

func (c *OrderClient) CreateOrder(ctx context.Context, req protocol.OrderRequest) (protocol.OrderResult, error) {
	var result protocol.OrderResult

	if err := postJSON(ctx, c.client, c.cfg, "/orders", req, &result); err != nil {
		return protocol.OrderResult{}, fmt.Errorf("create order: %w", err)
	}

	c.logger.InfoContext(ctx, "Order created", "reference", result.Reference)

	return result, nil
}

// assistantRequest is the wire form of one completion call.
type assistantRequest struct {
	SystemPrompt      string                      `json:"system_prompt,omitempty"`
	Model             string                      `json:"model,omitempty"`
	MaxTokens         int                         `json:"max_tokens,omitempty"`
	Temperature       float64                     `json:"temperature,omitempty"`
	History           []assistantMessage          `json:"history,omitempty"`
	UserMessage       string                      `json:"user_message"`
	NavigationTargets []protocol.NavigationTarget `json:"navigation_targets,omitempty"`
}

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantReply struct {
	Text               string            `json:"text,omitempty"`
	NavigateWorkflowID string            `json:"navigate_workflow_id,omitempty"`
	Declined           bool              `json:"declined,omitempty"`
	Category           string            `json:"category,omitempty"`
	VariableUpdates    map[string]string `json:"variable_updates,omitempty"`
}

// AssistantClient calls the completion service. The augmentation layer owns
// the deadline; this client only honors the context it is handed.
type AssistantClient struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewAssistantClient(logger *slog.Logger, cfg Config) *AssistantClient {
	return &AssistantClient{
		cfg:    cfg,
		client: cfg.httpClient(),
		logger: logger.With("module", "assistant_client"),
	}
}

func (c *AssistantClient) Complete(ctx context.Context, req protocol.AssistantRequest) (protocol.AssistantReply, error) {
	wire := assistantRequest{
		SystemPrompt:      req.SystemPrompt,
		Model:             req.Model,
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		UserMessage:       req.UserMessage,
		NavigationTargets: req.NavigationTargets,
	}

	for _, message := range req.History {
		wire.History = append(wire.History, assistantMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	var reply assistantReply
	if err := postJSON(ctx, c.client, c.cfg, "/complete", wire, &reply); err != nil {
		return protocol.AssistantReply{}, fmt.Errorf("assistant completion: %w", err)
	}

	return protocol.AssistantReply{
		Text:               reply.Text,
		NavigateWorkflowID: reply.NavigateWorkflowID,
		Declined:           reply.Declined,
		Category:           models.Category(reply.Category),
		VariableUpdates:    reply.VariableUpdates,
	}, nil
}
