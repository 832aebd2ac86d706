package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const groqChatURL = "https://api.groq.com/openai/v1/chat/completions"

// LLMClient calls the Groq chat-completions API (OpenAI-compatible).
type LLMClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewLLMClient creates a client for the given model. The API key is consumed
// as opaque configuration.
func NewLLMClient(apiKey, model string) *LLMClient {
	return &LLMClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: groqChatURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Chat sends the message list and returns the assistant reply.
func (c *LLMClient) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from chat model")
	}
	return parsed.Choices[0].Message.Content, nil
}
