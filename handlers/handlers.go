package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"prodbot/chat"
	"prodbot/models"
	"prodbot/notify"
	"prodbot/repository"
	"prodbot/scraper"
	"prodbot/tracker"
)

type Handlers struct {
	fetcher      scraper.Fetcher
	extractor    *scraper.Extractor
	notifier     notify.Notifier
	registry     *tracker.Registry
	pipeline     *chat.Pipeline
	archive      *repository.ObservationRepository
	pollInterval time.Duration
	sessions     *chat.Store
}

// NewHandlers wires the HTTP layer. notifier and archive may be nil when the
// corresponding configuration is absent.
func NewHandlers(
	fetcher scraper.Fetcher,
	extractor *scraper.Extractor,
	notifier notify.Notifier,
	registry *tracker.Registry,
	pipeline *chat.Pipeline,
	archive *repository.ObservationRepository,
	pollInterval time.Duration,
	sessions *chat.Store,
) *Handlers {
	return &Handlers{
		fetcher:      fetcher,
		extractor:    extractor,
		notifier:     notifier,
		registry:     registry,
		pipeline:     pipeline,
		archive:      archive,
		pollInterval: pollInterval,
		sessions:     sessions,
	}
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now(),
		"service":         "prodbot",
		"active_tracking": h.registry.Count(),
		"chat_sessions":   h.sessions.Len(),
	}
	writeJSON(w, http.StatusOK, response)
}

// StartTracking performs the synchronous first price check, responds with
// the extracted product details and hands the polling loop off to run
// detached. Failures after this response are invisible to the caller.
func (h *Handlers) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req models.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "Missing URL")
		return
	}

	page, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		log.Printf("Initial fetch failed for %s: %v", req.URL, err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Could not fetch product page: %v", err))
		return
	}
	doc, err := h.extractor.Parse(page)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Could not parse product page")
		return
	}
	price, err := h.extractor.ExtractPrice(doc)
	if err != nil {
		log.Printf("Initial price extraction failed for %s: %v", req.URL, err)
		writeError(w, http.StatusBadGateway, "Could not find a price on the product page")
		return
	}

	title := "The specified product"
	if t, err := h.extractor.ExtractTitle(doc); err == nil {
		title = t
	}
	var image *string
	if img, err := h.extractor.ExtractImage(doc); err == nil {
		image = &img
	}

	message := fmt.Sprintf("Price tracking started for '%s'. Current price: ₹%.2f.", title, price)

	if req.Email != "" && h.notifier != nil {
		product := models.TrackedProduct{
			URL:       req.URL,
			Recipient: req.Email,
			Title:     title,
			CreatedAt: time.Now(),
		}
		var archive tracker.Archive
		if h.archive != nil {
			archive = h.archive
		}
		loop := tracker.NewLoop(product, h.fetcher, h.extractor, h.notifier, h.pollInterval, archive)
		if err := h.registry.Start(loop); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		message += " You will be notified on price drops."
	} else {
		message += " Email notifications not configured."
	}

	writeJSON(w, http.StatusOK, models.TrackResponse{
		Title:   title,
		Price:   price,
		Image:   image,
		Message: message,
	})
}

// StopTracking cancels the loop for a (url, email) pair.
func (h *Handlers) StopTracking(w http.ResponseWriter, r *http.Request) {
	var req models.StopTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "URL and email are required")
		return
	}

	if !h.registry.Stop(req.URL, req.Email) {
		writeError(w, http.StatusNotFound, "No active tracking for this URL and email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tracking stopped"})
}

// ListTracking returns all active tracking sessions.
func (h *Handlers) ListTracking(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	if sessions == nil {
		sessions = []models.TrackingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetTrackingHistory returns archived observations for a (url, email) pair.
func (h *Handlers) GetTrackingHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "Observation archive not configured")
		return
	}

	url := r.URL.Query().Get("url")
	email := r.URL.Query().Get("email")
	if url == "" || email == "" {
		writeError(w, http.StatusBadRequest, "url and email query parameters are required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	history, err := h.archive.History(url, email, limit)
	if err != nil {
		log.Printf("Failed to get observation history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get observation history")
		return
	}
	if history == nil {
		history = []models.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Chat answers a free-text message through the chat pipeline.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	sessionID, reply, err := h.pipeline.Answer(r.Context(), req.SessionID, req.Message)
	if err != nil {
		log.Printf("Chat pipeline failed: %v", err)
		writeError(w, http.StatusBadGateway, "Could not generate a reply")
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{SessionID: sessionID, Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
