package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"funding-offer-bot-go/internal/models"
	"sort"

	"github.com/dgraph-io/badger/v3"
)

const recordPrefix = "cycle/"

// badgerRepository is the BadgerDB implementation of the JournalRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
func NewBadgerRepository(dbPath string) (JournalRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Errors are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

// recordKey orders records of one strategy by time: cycle/<strategy>/<unix nano>/<cycle id>
func recordKey(record *models.CycleRecord) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", recordPrefix, record.Strategy, record.Time.UnixNano(), record.CycleID))
}

// SaveRecord marshals the record into JSON and stores it under its time-ordered key.
func (r *badgerRepository) SaveRecord(record *models.CycleRecord) error {
	if record == nil {
		return errors.New("nil cycle record")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(record), data)
	})
}

// LoadRecords walks the key space backwards so the newest records come first.
func (r *badgerRepository) LoadRecords(strategy string, limit int) ([]models.CycleRecord, error) {
	prefix := []byte(recordPrefix)
	if strategy != "" {
		prefix = []byte(recordPrefix + strategy + "/")
	}

	var records []models.CycleRecord
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var rec models.CycleRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
			// Keys of different strategies are not time ordered, so only a single strategy can stop early.
			if strategy != "" && limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if strategy == "" {
		sort.SliceStable(records, func(i, j int) bool { return records[i].Time.After(records[j].Time) })
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
