package chat

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"prodbot/scraper"
)

// productURLRE recognizes product-page URLs (full and short-link forms)
// embedded in chat messages.
var productURLRE = regexp.MustCompile(`https?://(?:www\.)?amazon\.in/[^\s]+|https?://amzn\.in/[^\s]+`)

const systemInstruction = `You are a specialized Tech Product Analyst. Your goal is to provide recommendations and answers based on aggregated user reviews and real-world usage feedback.

YOUR GUIDELINES:
1. Domain Restriction: You must ONLY answer questions related to electronic gadgets (Smartphones, Laptops, PC components, Displays, Graphics Cards, Earbuds, Cameras, Smartwatches, etc.).
2. Refusal Policy: If the user asks about ANY other topic (e.g., clothes, food, politics, general coding, history), politely refuse. Say: "I can only assist with electronic gadgets and tech reviews."
3. Review-Based Analysis: When answering, frame your response around user experiences. Use phrases like "Users generally report...", "Common complaints include...", or "Reviewers praise the...". Focus on pros and cons.
4. Product Suggestions: When users ask for product recommendations or alternatives, provide 2-3 relevant product suggestions with brief descriptions.`

const retrievalLimit = 4

// LLM generates a reply from a conversation. *LLMClient is the production
// implementation.
type LLM interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ContextRetriever fetches passages relevant to a query. *Retriever is the
// production implementation; a nil retriever degrades to no-context answers.
type ContextRetriever interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Pipeline answers chat messages: product URLs short-circuit to an extracted
// summary, everything else goes through retrieval + generation with
// per-session memory.
type Pipeline struct {
	store     *Store
	llm       LLM
	retriever ContextRetriever
	fetcher   scraper.Fetcher
	extractor *scraper.Extractor
}

// NewPipeline wires the chat pipeline. retriever may be nil when no vector
// store is configured.
func NewPipeline(store *Store, llm LLM, retriever ContextRetriever, fetcher scraper.Fetcher, extractor *scraper.Extractor) *Pipeline {
	if retriever == nil {
		log.Println("No vector store configured, chat answers without retrieval context")
	}
	return &Pipeline{
		store:     store,
		llm:       llm,
		retriever: retriever,
		fetcher:   fetcher,
		extractor: extractor,
	}
}

// Answer handles one chat message and returns the session id (created when
// absent) and the reply.
func (p *Pipeline) Answer(ctx context.Context, sessionID, message string) (string, string, error) {
	sess := p.store.Get(sessionID)

	// A recognizable product URL is answered with an extracted summary
	// instead of routing to the chat model. Extraction failure falls through
	// to the model rather than erroring the whole request.
	if url := productURLRE.FindString(message); url != "" {
		if summary, ok := p.productSummary(ctx, url); ok {
			sess.Append(message, summary)
			return sess.ID, summary, nil
		}
	}

	if p.llm == nil {
		return sess.ID, "", fmt.Errorf("chat model not configured")
	}

	messages := []Message{{Role: "system", Content: p.systemPrompt(ctx, message)}}
	messages = append(messages, sess.History()...)
	messages = append(messages, Message{Role: "user", Content: message})

	reply, err := p.llm.Chat(ctx, messages)
	if err != nil {
		return sess.ID, "", err
	}

	sess.Append(message, reply)
	return sess.ID, reply, nil
}

// productSummary extracts product info for the URL. ok is false when the page
// could not be fetched or parsed.
func (p *Pipeline) productSummary(ctx context.Context, url string) (string, bool) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Printf("Could not fetch product page %s: %v", url, err)
		return "", false
	}
	info, err := p.extractor.ExtractInfo(page)
	if err != nil {
		log.Printf("Could not extract product info from %s: %v", url, err)
		return "", false
	}
	return info.Summary(), true
}

// systemPrompt appends retrieved review passages to the system instruction.
func (p *Pipeline) systemPrompt(ctx context.Context, query string) string {
	if p.retriever == nil {
		return systemInstruction
	}
	passages, err := p.retriever.Search(ctx, query, retrievalLimit)
	if err != nil {
		log.Printf("Retrieval failed, answering without context: %v", err)
		return systemInstruction
	}
	if len(passages) == 0 {
		return systemInstruction
	}
	return systemInstruction + "\n\nContext:\n" + strings.Join(passages, "\n")
}
