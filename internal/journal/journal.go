package journal

import (
	"funding-offer-bot-go/internal/models"
	"funding-offer-bot-go/internal/persistence"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Journal records cycle outcomes asynchronously so that a slow store never
// delays the polling loop. The engine never reads the journal back.
type Journal struct {
	repo       persistence.JournalRepository
	recordChan chan *models.CycleRecord
	stopChan   chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	dropped    atomic.Int64
	logger     *zap.Logger
}

// NewJournal creates a new Journal. A nil repo turns Record into a no-op sink.
func NewJournal(repo persistence.JournalRepository, logger *zap.Logger) *Journal {
	return &Journal{
		repo:       repo,
		recordChan: make(chan *models.CycleRecord, 256), // Buffered channel
		stopChan:   make(chan struct{}),
		logger:     logger,
	}
}

// Start begins the persistence loop.
func (j *Journal) Start() {
	j.wg.Add(1)
	go j.persistenceLoop()
	j.logger.Sugar().Info("Journal started.")
}

// Stop flushes pending records and shuts the loop down. Safe to call more than once.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
		j.wg.Wait()
		j.logger.Sugar().Infof("Journal stopped. Dropped records: %d", j.dropped.Load())
	})
}

// Record queues a copy of the record. It never blocks: when the buffer is full the record is dropped.
func (j *Journal) Record(record models.CycleRecord) {
	select {
	case <-j.stopChan:
		j.dropped.Add(1)
		return
	default:
	}

	select {
	case j.recordChan <- &record:
	default:
		j.dropped.Add(1)
		j.logger.Sugar().Warnf("Journal buffer full, dropping record for %s (cycle %s)", record.Strategy, record.CycleID)
	}
}

// Dropped returns how many records were discarded.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// persistenceLoop handles the asynchronous saving of records.
func (j *Journal) persistenceLoop() {
	defer j.wg.Done()
	for {
		select {
		case record := <-j.recordChan:
			j.save(record)
		case <-j.stopChan:
			for {
				select {
				case record := <-j.recordChan:
					j.save(record)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) save(record *models.CycleRecord) {
	if j.repo == nil {
		return
	}
	if err := j.repo.SaveRecord(record); err != nil {
		j.logger.Sugar().Errorf("Failed to save cycle record %s: %v", record.CycleID, err)
	}
}
