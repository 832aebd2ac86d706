package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackedProduct identifies one price-tracking session: a product URL watched
// on behalf of a single recipient. Owned exclusively by one tracker loop.
type TrackedProduct struct {
	URL       string    `json:"url"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the registry key for this product.
func (p TrackedProduct) Key() string {
	return p.URL + "|" + strings.ToLower(p.Recipient)
}

// PriceObservation is a single observed price at a point in time.
type PriceObservation struct {
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// ProductInfo is the result of a one-shot product page extraction.
// Pointer fields are nil when the corresponding field was absent from the
// page; absence is never coerced to zero or an empty string.
type ProductInfo struct {
	URL         string   `json:"url"`
	Title       *string  `json:"title"`
	Price       *float64 `json:"price"`
	Image       *string  `json:"image"`
	Description *string  `json:"description"`
	Rating      *string  `json:"rating"`
	Reviews     *int     `json:"reviews"`
}

// Summary renders the plain-text product summary returned by the chat
// endpoint when a message contains a product URL.
func (p *ProductInfo) Summary() string {
	var b strings.Builder
	b.WriteString("Product Information:\n")
	fmt.Fprintf(&b, "Title: %s\n", orNA(p.Title))
	if p.Price != nil {
		fmt.Fprintf(&b, "Price: ₹%.2f\n", *p.Price)
	} else {
		b.WriteString("Price: N/A\n")
	}
	fmt.Fprintf(&b, "Rating: %s\n", orNA(p.Rating))
	if p.Reviews != nil {
		fmt.Fprintf(&b, "Reviews: %d\n", *p.Reviews)
	} else {
		b.WriteString("Reviews: N/A\n")
	}
	fmt.Fprintf(&b, "Description: %s\n", orNA(p.Description))
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	return b.String()
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

// TrackRequest is the request to start tracking a product.
type TrackRequest struct {
	URL   string `json:"url"`
	Email string `json:"email"`
}

// TrackResponse is the immediate response to a tracking request, populated
// from the first synchronous price check.
type TrackResponse struct {
	Title   string  `json:"title"`
	Price   float64 `json:"price"`
	Image   *string `json:"image"`
	Message string  `json:"message"`
}

// StopTrackRequest identifies the tracking session to stop.
type StopTrackRequest struct {
	URL   string `json:"url"`
	Email string `json:"email"`
}

// TrackingSession describes one active tracker loop.
type TrackingSession struct {
	URL          string     `json:"url"`
	Recipient    string     `json:"recipient"`
	Title        string     `json:"title"`
	CreatedAt    time.Time  `json:"created_at"`
	Observations int        `json:"observations"`
	LastPrice    *float64   `json:"last_price"`
	LastChecked  *time.Time `json:"last_checked"`
}

// ChatRequest is a free-text chat message, optionally bound to a session.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant reply and the session it belongs to.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}
