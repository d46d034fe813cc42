// Package llm is the single effect boundary for calling the LLM: every
// call is (prompt, response shape) -> parsed value | transport error |
// parse error, and this is the only place retries live (spec §9, "LLM as
// an effect"). The HTTP transport below is grounded on the NGOClaw gateway's
// OpenAI-compatible provider (internal/infrastructure/llm/openai/provider.go):
// a tuned http.Client, Bearer auth, and a JSON chat/completions body — the
// teacher's own LLM client talks gRPC to an out-of-process service, which
// has no analogue here since this system calls a hosted provider directly.
package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Role identifies the speaker of a conversation message.
type Role string

// Conversation roles accepted by the provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes a single non-streaming completion call. JSONObject
// requests the provider's "respond with a JSON object" mode, used by every
// caller in this system (question generator, DAG builder, critic).
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	JSONObject  bool
}

// Response is a parsed completion.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the interface every component calls through. Implementations
// must never retry internally in a way that's invisible to CallWithRetry —
// Complete makes exactly one attempt.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is an OpenAI-chat-completions-compatible provider: OpenAI
// itself, or any self-hosted gateway speaking the same wire format.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a provider client. baseURL defaults to the public
// OpenAI API when empty, matching NGOClaw's provider constructor.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Transport: transport},
	}
}

type chatCompletionRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Temperature    float64          `json:"temperature"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete issues one HTTP call. A non-2xx status or a connection-level
// failure is always wrapped in ErrTransport so CallWithRetry (and callers)
// recognize it as transient.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	apiReq := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		apiReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrTransport)
	}

	return &Response{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
