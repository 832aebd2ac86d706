package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"prodbot/models"
)

// ObservationRepository archives price observations per tracking session.
// It is write-mostly telemetry: drop detection never reads from here.
type ObservationRepository struct {
	db *sql.DB
}

func NewObservationRepository(db *sql.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// RecordObservation upserts the session row and appends the observation.
// Implements tracker.Archive.
func (r *ObservationRepository) RecordObservation(product models.TrackedProduct, obs models.PriceObservation) error {
	sessionID, err := r.ensureSession(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO price_observations (session_id, price, observed_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.Exec(query, sessionID, obs.Price, obs.ObservedAt); err != nil {
		return fmt.Errorf("failed to record observation: %v", err)
	}
	return nil
}

// History returns the archived observations for a (url, recipient) pair in
// chronological order, capped at limit.
func (r *ObservationRepository) History(url, recipient string, limit int) ([]models.PriceObservation, error) {
	query := `
		SELECT o.price, o.observed_at
		FROM price_observations o
		JOIN tracking_sessions s ON s.id = o.session_id
		WHERE s.url = $1 AND s.recipient = $2
		ORDER BY o.observed_at
		LIMIT $3
	`

	rows, err := r.db.Query(query, url, strings.ToLower(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get observation history: %v", err)
	}
	defer rows.Close()

	var observations []models.PriceObservation
	for rows.Next() {
		var obs models.PriceObservation
		if err := rows.Scan(&obs.Price, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %v", err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func (r *ObservationRepository) ensureSession(product models.TrackedProduct) (int, error) {
	query := `
		INSERT INTO tracking_sessions (url, recipient, title, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url, recipient) DO UPDATE SET title = EXCLUDED.title
		RETURNING id
	`

	var id int
	err := r.db.QueryRow(query, product.URL, strings.ToLower(product.Recipient), product.Title, product.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure tracking session: %v", err)
	}
	return id, nil
}
