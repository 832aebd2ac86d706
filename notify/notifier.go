// Package notify defines the notification interface and the SMTP
// implementation used to alert recipients about tracking events.
package notify

import (
	"context"
	"fmt"
)

// EventKind tags the two notification templates.
type EventKind string

const (
	KindTrackingStarted EventKind = "tracking_started"
	KindPriceDropped    EventKind = "price_dropped"
)

// Event carries everything a notification template interpolates. Events are
// transient: constructed, sent, discarded.
type Event struct {
	Kind          EventKind
	Recipient     string
	Title         string
	URL           string
	CurrentPrice  float64
	PreviousPrice float64
	Delta         float64
}

// Notifier delivers a single-recipient notification for a named event.
// A delivery failure must never terminate the calling loop.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// Format renders the subject and plain-text body for an event.
func Format(ev Event) (subject, body string) {
	switch ev.Kind {
	case KindTrackingStarted:
		subject = fmt.Sprintf("✅ Price Tracking Started for: %s", ev.Title)
		body = fmt.Sprintf(
			"Hi there,\n\n"+
				"We have started tracking the price for '%s'.\n"+
				"The current price is: ₹%.2f\n\n"+
				"We will notify you immediately if the price drops!",
			ev.Title, ev.CurrentPrice)
	case KindPriceDropped:
		subject = fmt.Sprintf("🚨 PRICE DROP ALERT for %s", ev.Title)
		body = fmt.Sprintf(
			"Great news! The price for '%s' has dropped!\n\n"+
				"Previous Price: ₹%.2f\n"+
				"Current Price: ₹%.2f\n"+
				"The price decreased by ₹%.2f.\n\n"+
				"Check the item now: %s",
			ev.Title, ev.PreviousPrice, ev.CurrentPrice, ev.Delta, ev.URL)
	default:
		subject = fmt.Sprintf("Prodbot notification for %s", ev.Title)
		body = fmt.Sprintf("Event %q for %s", ev.Kind, ev.URL)
	}
	return subject, body
}
