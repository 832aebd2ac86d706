package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"prodbot/models"
	"prodbot/notify"
	"prodbot/scraper"
)

// fallbackTitle is used when the product title cannot be resolved; tracking
// continues rather than failing the session.
const fallbackTitle = "The specified product"

// Archive receives successful observations for out-of-band persistence. The
// in-memory history stays the source of truth for drop detection; an archive
// failure is logged and ignored.
type Archive interface {
	RecordObservation(product models.TrackedProduct, obs models.PriceObservation) error
}

// Loop polls one tracked product. Every fetch or extraction failure is
// recoverable: the tick is skipped and the loop retries on the next schedule.
// There is no unrecoverable condition short of cancellation.
type Loop struct {
	fetcher   scraper.Fetcher
	extractor *scraper.Extractor
	notifier  notify.Notifier
	archive   Archive
	interval  time.Duration

	mu      sync.Mutex
	product models.TrackedProduct
	history History
	// started flips when the first real price has been observed; the
	// TrackingStarted notification is tied to that moment, never earlier.
	started bool
}

// NewLoop creates a loop for one (URL, recipient) pair. archive may be nil.
func NewLoop(product models.TrackedProduct, fetcher scraper.Fetcher, extractor *scraper.Extractor, notifier notify.Notifier, interval time.Duration, archive Archive) *Loop {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	return &Loop{
		fetcher:   fetcher,
		extractor: extractor,
		notifier:  notifier,
		archive:   archive,
		interval:  interval,
		product:   product,
	}
}

// Run polls until ctx is cancelled. The first tick runs immediately; the
// interval only separates consecutive ticks.
func (l *Loop) Run(ctx context.Context) {
	l.resolveTitle(ctx)

	for {
		l.tick(ctx)

		select {
		case <-ctx.Done():
			log.Printf("🛑 Tracking stopped for %s", l.product.URL)
			return
		case <-time.After(l.interval):
		}
	}
}

// resolveTitle fixes the product title for the lifetime of the session, even
// if the markup later changes. Best-effort: extraction failure falls back to
// a generic placeholder.
func (l *Loop) resolveTitle(ctx context.Context) {
	l.mu.Lock()
	known := l.product.Title
	l.mu.Unlock()
	if known != "" {
		return
	}

	title := fallbackTitle
	page, err := l.fetcher.Fetch(ctx, l.product.URL)
	if err == nil {
		if doc, err := l.extractor.Parse(page); err == nil {
			if t, err := l.extractor.ExtractTitle(doc); err == nil {
				title = t
			}
		}
	}
	if title == fallbackTitle {
		log.Printf("Could not resolve title for %s, using placeholder", l.product.URL)
	}

	l.mu.Lock()
	l.product.Title = title
	l.mu.Unlock()
}

// tick performs one fetch+extract+evaluate cycle.
func (l *Loop) tick(ctx context.Context) {
	page, err := l.fetcher.Fetch(ctx, l.product.URL)
	if err != nil {
		log.Printf("Price check failed for %s: %v", l.product.URL, err)
		return
	}

	doc, err := l.extractor.Parse(page)
	if err != nil {
		log.Printf("Price check failed for %s: %v", l.product.URL, err)
		return
	}

	price, err := l.extractor.ExtractPrice(doc)
	if err != nil {
		log.Printf("Could not extract price for %s: %v", l.product.URL, err)
		return
	}

	l.mu.Lock()
	obs := l.history.Record(price)
	first := !l.started
	l.started = true
	dropped := l.history.DroppedSincePrevious()
	delta := l.history.LastDelta()
	var previous float64
	if n := l.history.Len(); n >= 2 {
		previous = l.history.observations[n-2].Price
	}
	product := l.product
	l.mu.Unlock()

	if l.archive != nil {
		if err := l.archive.RecordObservation(product, obs); err != nil {
			log.Printf("Failed to archive observation for %s: %v", product.URL, err)
		}
	}

	switch {
	case first:
		log.Printf("📌 Tracking started for %s at ₹%.2f", product.Title, price)
		l.send(ctx, notify.Event{
			Kind:         notify.KindTrackingStarted,
			Recipient:    product.Recipient,
			Title:        product.Title,
			URL:          product.URL,
			CurrentPrice: price,
		})
	case dropped:
		log.Printf("📉 Price dropped for %s: ₹%.2f → ₹%.2f", product.Title, previous, price)
		l.send(ctx, notify.Event{
			Kind:          notify.KindPriceDropped,
			Recipient:     product.Recipient,
			Title:         product.Title,
			URL:           product.URL,
			CurrentPrice:  price,
			PreviousPrice: previous,
			Delta:         delta,
		})
	}
}

// send absorbs notifier failures: a missed notification on one cycle must
// not stop future cycles, and it is not retried within the same tick.
func (l *Loop) send(ctx context.Context, ev notify.Event) {
	if err := l.notifier.Send(ctx, ev); err != nil {
		log.Printf("Failed to send %s notification to %s: %v", ev.Kind, ev.Recipient, err)
	}
}

// Snapshot reports the current state of this tracking session.
func (l *Loop) Snapshot() models.TrackingSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := models.TrackingSession{
		URL:          l.product.URL,
		Recipient:    l.product.Recipient,
		Title:        l.product.Title,
		CreatedAt:    l.product.CreatedAt,
		Observations: l.history.Len(),
	}
	if last, ok := l.history.Last(); ok {
		price := last.Price
		at := last.ObservedAt
		s.LastPrice = &price
		s.LastChecked = &at
	}
	return s
}

// Key returns the registry key for this loop's product.
func (l *Loop) Key() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.product.Key()
}
