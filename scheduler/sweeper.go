package scheduler

import (
	"log"

	"github.com/robfig/cron/v3"

	"prodbot/chat"
)

// SessionSweeper periodically evicts idle chat sessions so conversation
// memory has an explicit lifecycle instead of growing for the life of the
// process.
type SessionSweeper struct {
	cron  *cron.Cron
	store *chat.Store
}

func NewSessionSweeper(store *chat.Store) *SessionSweeper {
	return &SessionSweeper{
		cron:  cron.New(),
		store: store,
	}
}

// Start schedules the eviction sweep every 5 minutes.
func (s *SessionSweeper) Start() {
	_, err := s.cron.AddFunc("*/5 * * * *", s.sweep)
	if err != nil {
		log.Printf("Failed to schedule session sweeper: %v", err)
		return
	}
	s.cron.Start()
	log.Println("Chat session sweeper scheduled to run every 5 minutes")
}

// Stop stops the scheduled sweep.
func (s *SessionSweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *SessionSweeper) sweep() {
	if evicted := s.store.Sweep(); evicted > 0 {
		log.Printf("🧹 Evicted %d idle chat sessions (%d live)", evicted, s.store.Len())
	}
}
