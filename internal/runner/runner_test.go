package runner

import (
	"context"
	"errors"
	"fmt"
	"funding-offer-bot-go/internal/models"
	"funding-offer-bot-go/internal/strategy"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// callLog collects strategy invocations in order.
type callLog struct {
	sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.Lock()
	defer l.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) get() []string {
	l.Lock()
	defer l.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeStrategy struct {
	name     string
	currency string
	decision models.Decision
	err      error
	log      *callLog
	hook     func(ctx context.Context)
}

func (f *fakeStrategy) Name() string     { return f.name }
func (f *fakeStrategy) Currency() string { return f.currency }

func (f *fakeStrategy) Execute(ctx context.Context) (models.Decision, error) {
	f.log.add(f.name)
	if f.hook != nil {
		f.hook(ctx)
	}
	return f.decision, f.err
}

type memoryRecorder struct {
	sync.Mutex
	records []models.CycleRecord
}

func (m *memoryRecorder) Record(record models.CycleRecord) {
	m.Lock()
	defer m.Unlock()
	m.records = append(m.records, record)
}

func (m *memoryRecorder) len() int {
	m.Lock()
	defer m.Unlock()
	return len(m.records)
}

func TestTickRunsSequentiallyAndSurvivesFailures(t *testing.T) {
	log := &callLog{}
	strategies := []strategy.Strategy{
		&fakeStrategy{name: "a", currency: "USD", log: log, err: fmt.Errorf("wrap: %w", models.ErrWalletNotFound)},
		&fakeStrategy{name: "b", currency: "UST", log: log, err: &models.TransportError{Op: "auth/r/wallets", Err: errors.New("timeout")}},
		&fakeStrategy{name: "c", currency: "EUR", log: log, decision: models.SubmitOnly(100, 0.001, 2)},
	}
	rec := &memoryRecorder{}
	r := NewRunner(strategies, time.Millisecond, rec, zap.NewNop())

	records := r.Tick(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, log.get())
	require.Len(t, records, 3)
	assert.Equal(t, models.OutcomeWalletNotFound, records[0].Outcome)
	assert.Equal(t, models.OutcomeTransport, records[1].Outcome)
	assert.Contains(t, records[1].Error, "timeout")
	assert.Equal(t, models.OutcomeOK, records[2].Outcome)
	assert.Equal(t, models.ActionSubmitOnly, records[2].Action)
	assert.Equal(t, 100.0, records[2].Amount)
	assert.Equal(t, "EUR", records[2].Currency)
	assert.Equal(t, 3, rec.len())
}

func TestCycleIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewCycleID()
		require.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}

	log := &callLog{}
	r := NewRunner([]strategy.Strategy{
		&fakeStrategy{name: "a", log: log, decision: models.Skip("x")},
		&fakeStrategy{name: "b", log: log, decision: models.Skip("x")},
	}, time.Millisecond, nil, zap.NewNop())
	records := r.Tick(context.Background())
	assert.NotEqual(t, records[0].CycleID, records[1].CycleID)
}

func TestInFlightEvaluationCompletesOnCancel(t *testing.T) {
	log := &callLog{}
	ctx, cancel := context.WithCancel(context.Background())
	var innerErr error
	first := &fakeStrategy{name: "first", log: log, decision: models.Skip("x"), hook: func(c context.Context) {
		cancel()
		innerErr = c.Err()
	}}
	second := &fakeStrategy{name: "second", log: log}

	r := NewRunner([]strategy.Strategy{first, second}, time.Millisecond, nil, zap.NewNop())
	records := r.Tick(ctx)

	assert.NoError(t, innerErr, "evaluation context is detached from cancellation")
	assert.Equal(t, []string{"first"}, log.get(), "no further strategy starts after cancel")
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeOK, records[0].Outcome)
}

func TestRunStopsOnCancel(t *testing.T) {
	log := &callLog{}
	rec := &memoryRecorder{}
	r := NewRunner([]strategy.Strategy{&fakeStrategy{name: "a", log: log, decision: models.Skip("x")}}, 5*time.Millisecond, rec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.len() >= 3 }, 2*time.Second, time.Millisecond, "ticks repeat after the interval")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
