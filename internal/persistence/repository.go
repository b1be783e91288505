package persistence

import "funding-offer-bot-go/internal/models"

// JournalRepository defines the interface for the decision journal store.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type JournalRepository interface {
	// SaveRecord appends one cycle outcome.
	SaveRecord(record *models.CycleRecord) error

	// LoadRecords returns up to limit records, newest first.
	// An empty strategy selects every strategy; limit <= 0 means no limit.
	LoadRecords(strategy string, limit int) ([]models.CycleRecord, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
