package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodbot/models"
	"prodbot/notify"
	"prodbot/scraper"
)

type fetchResult struct {
	body string
	err  error
}

// scriptedFetcher serves a fixed sequence of pages, then blocks until the
// context is cancelled. Drained is closed once the script is exhausted so
// tests know every scripted tick has been consumed.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  []fetchResult
	once    sync.Once
	Drained chan struct{}
}

func newScriptedFetcher(script ...fetchResult) *scriptedFetcher {
	return &scriptedFetcher{script: script, Drained: make(chan struct{})}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) (*scraper.Page, error) {
	f.mu.Lock()
	if len(f.script) == 0 {
		f.mu.Unlock()
		f.once.Do(func() { close(f.Drained) })
		<-ctx.Done()
		return nil, &scraper.FetchError{URL: url, Err: ctx.Err()}
	}
	next := f.script[0]
	f.script = f.script[1:]
	if len(f.script) == 0 {
		f.once.Do(func() { close(f.Drained) })
	}
	f.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return &scraper.Page{FinalURL: url, Body: []byte(next.body)}, nil
}

func pricePage(price string) fetchResult {
	return fetchResult{body: fmt.Sprintf(
		`<html><body><span id="priceblock_ourprice">₹%s</span></body></html>`, price)}
}

func testProduct() models.TrackedProduct {
	return models.TrackedProduct{
		URL:       "https://www.amazon.in/dp/B0TEST",
		Recipient: "user@example.com",
		// Preset title skips the title resolution fetch so the script
		// maps one entry per tick.
		Title: "Test Product",
	}
}

// runScript drives a loop through the given script and returns everything
// the notifier saw.
func runScript(t *testing.T, mock *notify.Mock, script ...fetchResult) {
	t.Helper()

	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	fetcher := newScriptedFetcher(script...)
	loop := NewLoop(testProduct(), fetcher, extractor, mock, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	select {
	case <-fetcher.Drained:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never consumed the scripted pages")
	}
	// Give the final tick time to evaluate before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
}

func TestLoopFirstObservationStartsTracking(t *testing.T) {
	mock := &notify.Mock{}
	runScript(t, mock, pricePage("999.00"))

	started := mock.OfKind(notify.KindTrackingStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "Test Product", started[0].Title)
	assert.Equal(t, "user@example.com", started[0].Recipient)
	assert.Equal(t, 999.00, started[0].CurrentPrice)
	assert.Empty(t, mock.OfKind(notify.KindPriceDropped))
}

func TestLoopNotifiesOnStrictDropOnly(t *testing.T) {
	mock := &notify.Mock{}
	runScript(t, mock,
		pricePage("999.00"), // started
		pricePage("899.00"), // dropped
		pricePage("899.00"), // unchanged, silent
		pricePage("950.00"), // increase, silent
	)

	require.Len(t, mock.OfKind(notify.KindTrackingStarted), 1)

	drops := mock.OfKind(notify.KindPriceDropped)
	require.Len(t, drops, 1)
	assert.Equal(t, 899.00, drops[0].CurrentPrice)
	assert.Equal(t, 999.00, drops[0].PreviousPrice)
	assert.InDelta(t, 100.00, drops[0].Delta, 0.001)

	assert.Len(t, mock.Events(), 2)
}

func TestLoopSkipsFailedTicks(t *testing.T) {
	mock := &notify.Mock{}
	runScript(t, mock,
		fetchResult{err: &scraper.FetchError{URL: "x", StatusCode: 503}},
		fetchResult{body: "<html><body>captcha wall</body></html>"},
		pricePage("999.00"),
	)

	// Failed fetches and unextractable pages are skipped, not recorded;
	// the first real price still triggers exactly one started event.
	require.Len(t, mock.OfKind(notify.KindTrackingStarted), 1)
	assert.Len(t, mock.Events(), 1)
}

func TestLoopAbsorbsNotifierFailure(t *testing.T) {
	mock := &notify.Mock{Err: errors.New("smtp unreachable")}
	runScript(t, mock,
		pricePage("999.00"),
		pricePage("899.00"),
	)

	// Both sends failed but the loop kept polling and kept trying.
	assert.Len(t, mock.Events(), 2)
}

func TestLoopSnapshotReflectsHistory(t *testing.T) {
	mock := &notify.Mock{}
	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	fetcher := newScriptedFetcher(pricePage("999.00"))
	loop := NewLoop(testProduct(), fetcher, extractor, mock, time.Millisecond, nil)

	before := loop.Snapshot()
	assert.Equal(t, 0, before.Observations)
	assert.Nil(t, before.LastPrice)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	<-fetcher.Drained
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	after := loop.Snapshot()
	assert.Equal(t, 1, after.Observations)
	require.NotNil(t, after.LastPrice)
	assert.Equal(t, 999.00, *after.LastPrice)
	assert.NotNil(t, after.LastChecked)
}

type recordingArchive struct {
	mu   sync.Mutex
	obs  []models.PriceObservation
	fail bool
}

func (a *recordingArchive) RecordObservation(_ models.TrackedProduct, obs models.PriceObservation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("database unavailable")
	}
	a.obs = append(a.obs, obs)
	return nil
}

func (a *recordingArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.obs)
}

func (a *recordingArchive) last() models.PriceObservation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.obs[len(a.obs)-1]
}

func TestLoopArchivesObservations(t *testing.T) {
	mock := &notify.Mock{}
	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	archive := &recordingArchive{}
	fetcher := newScriptedFetcher(pricePage("999.00"), pricePage("899.00"))
	loop := NewLoop(testProduct(), fetcher, extractor, mock, time.Millisecond, archive)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	<-fetcher.Drained
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, archive.count())

	// The archive receives the exact recorded observation: same timestamp
	// as the in-memory history, not a second clock read.
	snap := loop.Snapshot()
	require.NotNil(t, snap.LastChecked)
	assert.Equal(t, *snap.LastChecked, archive.last().ObservedAt)
	assert.Equal(t, 899.00, archive.last().Price)
}

func TestLoopSurvivesArchiveFailure(t *testing.T) {
	mock := &notify.Mock{}
	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	archive := &recordingArchive{fail: true}
	fetcher := newScriptedFetcher(pricePage("999.00"), pricePage("899.00"))
	loop := NewLoop(testProduct(), fetcher, extractor, mock, time.Millisecond, archive)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	<-fetcher.Drained
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// Archiving is best effort: failures never block notifications.
	assert.Len(t, mock.OfKind(notify.KindTrackingStarted), 1)
	assert.Len(t, mock.OfKind(notify.KindPriceDropped), 1)
}

func TestLoopResolvesTitleFallback(t *testing.T) {
	mock := &notify.Mock{}
	extractor, err := scraper.NewExtractor("https://www.amazon.in")
	require.NoError(t, err)

	product := testProduct()
	product.Title = "" // force title resolution

	// First fetch is the title lookup and fails; the tick that follows
	// still observes a price under the placeholder title.
	fetcher := newScriptedFetcher(
		fetchResult{err: &scraper.FetchError{URL: "x", StatusCode: 503}},
		pricePage("999.00"),
	)
	loop := NewLoop(product, fetcher, extractor, mock, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	<-fetcher.Drained
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	started := mock.OfKind(notify.KindTrackingStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "The specified product", started[0].Title)
}
