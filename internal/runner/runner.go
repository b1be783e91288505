package runner

import (
	"bytes"
	"context"
	"funding-offer-bot-go/internal/metrics"
	"funding-offer-bot-go/internal/models"
	"funding-offer-bot-go/internal/reporter"
	"funding-offer-bot-go/internal/strategy"
	"time"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// Recorder 接收每个策略周期的结果, e.g., journal.Journal
type Recorder interface {
	Record(record models.CycleRecord)
}

// Runner 在每个轮询周期内按顺序执行所有策略，周期之间固定等待。
type Runner struct {
	strategies []strategy.Strategy
	interval   time.Duration
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewRunner 创建一个新的 Runner。recorder 可以为 nil。
func NewRunner(strategies []strategy.Strategy, interval time.Duration, recorder Recorder, logger *zap.Logger) *Runner {
	return &Runner{
		strategies: strategies,
		interval:   interval,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
		newID:      NewCycleID,
	}
}

// NewCycleID 返回 base62 编码的随机 UUID
func NewCycleID() string {
	id := uuid.New()
	return base62.EncodeToString(id[:])
}

// Run 持续轮询直到 ctx 被取消。正在进行的策略评估总会执行完毕。
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("策略循环已启动", zap.Int("strategies", len(r.strategies)), zap.Duration("interval", r.interval))
	for {
		r.Tick(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info("策略循环已停止")
			return
		case <-time.After(r.interval):
		}
	}
}

// Tick 依次执行每个策略一次。某个策略失败不会影响后续策略。
func (r *Runner) Tick(ctx context.Context) []models.CycleRecord {
	records := make([]models.CycleRecord, 0, len(r.strategies))
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		records = append(records, r.runOne(context.WithoutCancel(ctx), s))
	}

	summary := reporter.Summarize(records)
	r.logger.Debug("本轮完成",
		zap.Int("cycles", summary.Cycles),
		zap.Int("submitted", summary.Submitted),
		zap.Int("canceled", summary.Canceled),
		zap.Int("failed", summary.Failed))
	if r.logger.Core().Enabled(zap.DebugLevel) && len(records) > 0 {
		var buf bytes.Buffer
		reporter.RenderTick(&buf, records)
		r.logger.Sugar().Debugf("\n%s", buf.String())
	}
	return records
}

func (r *Runner) runOne(ctx context.Context, s strategy.Strategy) models.CycleRecord {
	start := r.now()
	rec := models.CycleRecord{
		CycleID:  r.newID(),
		Strategy: s.Name(),
		Currency: s.Currency(),
		Time:     start,
	}
	log := r.logger.With(zap.String("strategy", rec.Strategy), zap.String("currency", rec.Currency), zap.String("cycle_id", rec.CycleID))
	log.Debug("周期开始")

	d, err := s.Execute(ctx)
	rec.Elapsed = r.now().Sub(start).Seconds()
	rec.Action = d.Action
	rec.Reason = d.Reason
	rec.Amount = d.Amount
	rec.Rate = d.Rate
	rec.Period = d.Period
	rec.Outcome = models.Classify(err)

	metrics.Cycles.WithLabelValues(rec.Strategy, rec.Outcome).Inc()
	metrics.CycleLatency.Observe(rec.Elapsed)

	if err != nil {
		rec.Error = err.Error()
		log.Error("周期失败", zap.String("outcome", rec.Outcome), zap.Error(err))
	} else {
		log.Info("周期完成", zap.Stringer("decision", d), zap.Float64("elapsed", rec.Elapsed))
	}

	if r.recorder != nil {
		r.recorder.Record(rec)
	}
	return rec
}
