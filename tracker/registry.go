package tracker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"prodbot/models"
)

// ErrAlreadyTracking is returned when a (URL, recipient) pair is already
// being polled.
var ErrAlreadyTracking = fmt.Errorf("already tracking this product for this recipient")

type running struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every running tracker loop. Loops are launched detached but
// each carries a cancel function so tracking can be stopped without killing
// the whole service.
type Registry struct {
	mu    sync.Mutex
	loops map[string]*running
}

func NewRegistry() *Registry {
	return &Registry{loops: make(map[string]*running)}
}

// Start launches the loop in its own goroutine. The caller returns
// immediately; the loop runs until Stop or StopAll.
func (r *Registry) Start(loop *Loop) error {
	key := loop.Key()

	r.mu.Lock()
	if _, exists := r.loops[key]; exists {
		r.mu.Unlock()
		return ErrAlreadyTracking
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry := &running{loop: loop, cancel: cancel, done: make(chan struct{})}
	r.loops[key] = entry
	r.mu.Unlock()

	go func() {
		defer close(entry.done)
		loop.Run(ctx)

		r.mu.Lock()
		if current, ok := r.loops[key]; ok && current == entry {
			delete(r.loops, key)
		}
		r.mu.Unlock()
	}()

	log.Printf("🚀 Tracker loop started (%d active)", r.Count())
	return nil
}

// Stop cancels the loop for the given (url, recipient) pair. Returns false
// when no such loop is running.
func (r *Registry) Stop(url, recipient string) bool {
	key := models.TrackedProduct{URL: url, Recipient: recipient}.Key()

	r.mu.Lock()
	entry, ok := r.loops[key]
	if ok {
		delete(r.loops, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.cancel()
	return true
}

// StopAll cancels every running loop and waits for them to exit.
func (r *Registry) StopAll() {
	r.mu.Lock()
	entries := make([]*running, 0, len(r.loops))
	for key, entry := range r.loops {
		entries = append(entries, entry)
		delete(r.loops, key)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	for _, entry := range entries {
		<-entry.done
	}
}

// Count returns the number of active loops.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loops)
}

// List snapshots every active tracking session, ordered by creation time.
func (r *Registry) List() []models.TrackingSession {
	r.mu.Lock()
	loops := make([]*Loop, 0, len(r.loops))
	for _, entry := range r.loops {
		loops = append(loops, entry.loop)
	}
	r.mu.Unlock()

	sessions := make([]models.TrackingSession, 0, len(loops))
	for _, l := range loops {
		sessions = append(sessions, l.Snapshot())
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}
