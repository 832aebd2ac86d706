package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"prodbot/config"
)

// Retriever queries the AstraDB Data API for review passages relevant to a
// chat message. The collection is expected to carry server-side vectorize
// embeddings, so search is a single JSON call.
type Retriever struct {
	endpoint   string
	token      string
	keyspace   string
	collection string
	client     *http.Client
}

// NewRetriever creates a retriever from the chat configuration.
func NewRetriever(cfg config.ChatConfig) *Retriever {
	return &Retriever{
		endpoint:   cfg.AstraEndpoint,
		token:      cfg.AstraToken,
		keyspace:   cfg.AstraKeyspace,
		collection: cfg.AstraCollection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns the text of the top-k documents most similar to the query.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]string, error) {
	reqBody := map[string]any{
		"find": map[string]any{
			"sort":       map[string]any{"$vectorize": query},
			"projection": map[string]any{"$vectorize": 1, "content": 1},
			"options":    map[string]any{"limit": limit},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal find command: %v", err)
	}

	url := fmt.Sprintf("%s/api/json/v1/%s/%s", r.endpoint, r.keyspace, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector store error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data struct {
			Documents []struct {
				Vectorize string `json:"$vectorize"`
				Content   string `json:"content"`
			} `json:"documents"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("vector store error: %s", parsed.Errors[0].Message)
	}

	passages := make([]string, 0, len(parsed.Data.Documents))
	for _, doc := range parsed.Data.Documents {
		switch {
		case doc.Vectorize != "":
			passages = append(passages, doc.Vectorize)
		case doc.Content != "":
			passages = append(passages, doc.Content)
		}
	}
	return passages, nil
}
