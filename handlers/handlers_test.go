package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodbot/chat"
	"prodbot/models"
	"prodbot/notify"
	"prodbot/repository"
	"prodbot/scraper"
	"prodbot/tracker"
)

const productHTML = `<html>
<head><title>Sony WH-1000XM5: Amazon.in: Electronics</title></head>
<body>
<span id="productTitle">Sony WH-1000XM5 Wireless Headphones</span>
<span id="priceblock_ourprice">₹24,990.00</span>
<img id="landingImage" src="https://m.media-amazon.com/images/I/headphones.jpg"/>
</body>
</html>`

type stubFetcher struct {
	body string
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*scraper.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.Page{FinalURL: url, Body: []byte(f.body)}, nil
}

type stubLLM struct {
	reply string
	err   error
}

func (l *stubLLM) Chat(context.Context, []chat.Message) (string, error) {
	return l.reply, l.err
}

type testEnv struct {
	handlers *Handlers
	registry *tracker.Registry
	notifier *notify.Mock
}

func newTestEnv(t *testing.T, fetcher scraper.Fetcher, llm chat.LLM, archive *repository.ObservationRepository) *testEnv {
	t.Helper()

	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	notifier := &notify.Mock{}
	registry := tracker.NewRegistry()
	t.Cleanup(registry.StopAll)

	sessions := chat.NewStore(30*time.Minute, 20)
	pipeline := chat.NewPipeline(sessions, llm, nil, fetcher, extractor)

	return &testEnv{
		handlers: NewHandlers(fetcher, extractor, notifier, registry, pipeline, archive, time.Hour, sessions),
		registry: registry,
		notifier: notifier,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.handlers.HealthCheck(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "prodbot", body["service"])
	assert.Equal(t, float64(0), body["active_tracking"])
}

func TestStartTrackingValidation(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	env.handlers.StartTracking(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, env.handlers.StartTracking, models.TrackRequest{Email: "user@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing URL", decodeBody(t, w)["error"])
}

func TestStartTrackingFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: &scraper.FetchError{URL: "x", StatusCode: 503}}
	env := newTestEnv(t, fetcher, nil, nil)

	w := postJSON(t, env.handlers.StartTracking, models.TrackRequest{
		URL: "https://www.amazon.in/dp/B0TEST",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 0, env.registry.Count())
}

func TestStartTrackingUnextractablePrice(t *testing.T) {
	fetcher := &stubFetcher{body: "<html><body>temporarily unavailable</body></html>"}
	env := newTestEnv(t, fetcher, nil, nil)

	w := postJSON(t, env.handlers.StartTracking, models.TrackRequest{
		URL: "https://www.amazon.in/dp/B0TEST",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "price")
}

func TestStartTrackingWithoutEmail(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	w := postJSON(t, env.handlers.StartTracking, models.TrackRequest{
		URL: "https://www.amazon.in/dp/B0TEST",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TrackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Sony WH-1000XM5 Wireless Headphones", resp.Title)
	assert.Equal(t, 24990.00, resp.Price)
	require.NotNil(t, resp.Image)
	assert.Contains(t, *resp.Image, "media-amazon.com")
	assert.Contains(t, resp.Message, "Email notifications not configured")
	assert.Equal(t, 0, env.registry.Count())
}

func TestStartTrackingWithEmailLaunchesLoop(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	reqBody := models.TrackRequest{
		URL:   "https://www.amazon.in/dp/B0TEST",
		Email: "user@example.com",
	}
	w := postJSON(t, env.handlers.StartTracking, reqBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TrackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "You will be notified on price drops")
	assert.Equal(t, 1, env.registry.Count())

	// Same product and recipient again is a conflict.
	w = postJSON(t, env.handlers.StartTracking, reqBody)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, env.registry.Count())
}

func TestStopTracking(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	w := postJSON(t, env.handlers.StopTracking, models.StopTrackRequest{
		URL: "https://www.amazon.in/dp/B0TEST",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, env.handlers.StopTracking, models.StopTrackRequest{
		URL:   "https://www.amazon.in/dp/B0TEST",
		Email: "user@example.com",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	startBody := models.TrackRequest{
		URL:   "https://www.amazon.in/dp/B0TEST",
		Email: "user@example.com",
	}
	require.Equal(t, http.StatusOK, postJSON(t, env.handlers.StartTracking, startBody).Code)
	require.Equal(t, 1, env.registry.Count())

	w = postJSON(t, env.handlers.StopTracking, models.StopTrackRequest{
		URL:   "https://www.amazon.in/dp/B0TEST",
		Email: "user@example.com",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.registry.Count())
}

func TestListTracking(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	env.handlers.ListTracking(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	require.Equal(t, http.StatusOK, postJSON(t, env.handlers.StartTracking, models.TrackRequest{
		URL:   "https://www.amazon.in/dp/B0TEST",
		Email: "user@example.com",
	}).Code)

	w = httptest.NewRecorder()
	env.handlers.ListTracking(w, req)
	var sessions []models.TrackingSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "https://www.amazon.in/dp/B0TEST", sessions[0].URL)
	assert.Equal(t, "user@example.com", sessions[0].Recipient)
}

func TestGetTrackingHistoryUnconfigured(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?url=x&email=y", nil)
	w := httptest.NewRecorder()
	env.handlers.GetTrackingHistory(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestGetTrackingHistoryRequiresParams(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, nil, repository.NewObservationRepository(nil))

	req := httptest.NewRequest(http.MethodGet, "/?url=x", nil)
	w := httptest.NewRecorder()
	env.handlers.GetTrackingHistory(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, &stubLLM{reply: "Users generally report..."}, nil)

	w := postJSON(t, env.handlers.Chat, models.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, env.handlers.Chat, models.ChatRequest{Message: "best earbuds under 5000?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Users generally report...", resp.Reply)
}

func TestChatPipelineFailure(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: productHTML}, &stubLLM{err: errors.New("rate limited")}, nil)

	w := postJSON(t, env.handlers.Chat, models.ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
