package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection. The archive is
// optional; callers skip this entirely when no DATABASE_URL is configured.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}
	log.Println("Successfully connected to database")
	return db, nil
}

// CreateTables creates the archive tables if they don't exist.
func CreateTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tracking_sessions (
			id SERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			recipient TEXT NOT NULL,
			title TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (url, recipient)
		)`,
		`CREATE TABLE IF NOT EXISTS price_observations (
			id SERIAL PRIMARY KEY,
			session_id INTEGER REFERENCES tracking_sessions(id) ON DELETE CASCADE,
			price DECIMAL(12,2) NOT NULL,
			observed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_observations_session ON price_observations (session_id, observed_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}
	return nil
}
