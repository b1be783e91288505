package strategy

import (
	"context"
	"fmt"
	"funding-offer-bot-go/internal/exchange"
	"funding-offer-bot-go/internal/metrics"
	"funding-offer-bot-go/internal/models"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	fallbackPeriod      = 2
	rateDiscount        = 0.99
	rateDiffThreshold   = 0.01
	amountDiffThreshold = 1.0
	candleTimeFrame     = "5m"
	candleLimit         = 10000

	ReasonInsufficientBalance = "insufficient balance"
	ReasonOfferAcceptable     = "active offer acceptable"
)

// SimpleStrategy 每个周期为一个币种维护至多一个隐藏的放贷挂单。
type SimpleStrategy struct {
	cfg     models.StrategyConfig
	account exchange.AccountState
	market  exchange.MarketData
	logger  *zap.Logger
	now     func() time.Time
}

// NewSimpleStrategy 创建一个新的 SimpleStrategy 实例。cfg 在构造后不再改变。
func NewSimpleStrategy(cfg models.StrategyConfig, account exchange.AccountState, market exchange.MarketData, logger *zap.Logger) *SimpleStrategy {
	return &SimpleStrategy{
		cfg:     cfg,
		account: account,
		market:  market,
		logger:  logger.With(zap.String("strategy", cfg.Name), zap.String("currency", cfg.Currency)),
		now:     time.Now,
	}
}

func (s *SimpleStrategy) Name() string     { return s.cfg.Name }
func (s *SimpleStrategy) Currency() string { return s.cfg.Currency }

// ReconcileBalances 返回 (可用余额, 总余额)。
// 现有挂单锁定的资金视为可用, 因为取消挂单会立即退回。
func ReconcileBalances(wallet models.Wallet, active *models.FundingOffer) (available, total float64) {
	available = wallet.AvailableBalance
	if active != nil {
		available += active.Amount
	}
	return available, wallet.Balance
}

// LoanAmount = max(minAmount, min(available, total*maxPercent))
func LoanAmount(available, total, minAmount, maxPercent float64) float64 {
	return math.Max(minAmount, math.Min(available, total*maxPercent))
}

// DiscoverRate 取回看窗口内第 nth 高的K线最高价 (nth 从1开始)。
// 相同最高价保持获取时的顺序。
func (s *SimpleStrategy) DiscoverRate(ctx context.Context, nth, period int) (float64, error) {
	start := s.now().Add(-time.Duration(s.cfg.MonitoredWindow) * time.Hour)
	candles, err := s.market.GetCandles(ctx, models.CandleQuery{
		Symbol:    exchange.FundingSymbol(s.cfg.Currency),
		TimeFrame: candleTimeFrame,
		Period:    period,
		Section:   models.SectionHist,
		Sort:      models.SortAsc,
		Start:     start.UnixMilli(),
		Limit:     candleLimit,
	})
	if err != nil {
		return 0, fmt.Errorf("获取K线失败: %w", err)
	}
	if nth < 1 || len(candles) < nth {
		return 0, fmt.Errorf("%w: got %d, need %d", models.ErrInsufficientData, len(candles), nth)
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].High > candles[j].High })
	return candles[nth-1].High, nil
}

// discoverRate 按目标天数发现利率, 低于 MinRate 时以2天重试一次。
func (s *SimpleStrategy) discoverRate(ctx context.Context) (float64, int, error) {
	period := s.cfg.TargetPeriod
	rate, err := s.DiscoverRate(ctx, s.cfg.NthHighestCandle, period)
	if err != nil {
		return 0, 0, err
	}
	if rate < s.cfg.MinRate && period > fallbackPeriod {
		s.logger.Info("利率低于最低要求, 以2天周期重试",
			zap.Float64("rate", rate), zap.Float64("min_rate", s.cfg.MinRate), zap.Int("period", period))
		period = fallbackPeriod
		if rate, err = s.DiscoverRate(ctx, s.cfg.NthHighestCandle, period); err != nil {
			return 0, 0, err
		}
	}
	return rate, period, nil
}

// Decide 根据余额、现有挂单和发现的利率得出决策。不访问交易所。
func Decide(cfg models.StrategyConfig, available, total float64, active *models.FundingOffer, rate float64, period int) models.Decision {
	if available < cfg.MinAmount {
		return models.Skip(ReasonInsufficientBalance)
	}

	finalRate := rate * rateDiscount
	loan := LoanAmount(available, total, cfg.MinAmount, cfg.MaxBalancePercentPerLoan)

	if active != nil {
		rateDiff := math.Abs(active.Rate-finalRate) / finalRate
		// 金额差有符号: 只有期望金额减少超过1才触发替换
		amountDiff := active.Amount - loan
		if rateDiff > rateDiffThreshold || amountDiff > amountDiffThreshold {
			return models.CancelAndSubmit(active.ID, loan, finalRate, period)
		}
		return models.Skip(ReasonOfferAcceptable)
	}
	return models.SubmitOnly(loan, finalRate, period)
}

// Evaluate 读取账户状态和行情并得出决策。
// 唯一的副作用是发现重复挂单时取消该币种的所有挂单。
func (s *SimpleStrategy) Evaluate(ctx context.Context) (models.Decision, error) {
	wallets, err := s.account.GetWallets(ctx)
	if err != nil {
		return models.Decision{}, fmt.Errorf("获取钱包失败: %w", err)
	}
	wallet, err := exchange.FundingWallet(wallets, s.cfg.Currency)
	if err != nil {
		return models.Decision{}, err
	}

	offers, err := s.account.GetActiveOffers(ctx, exchange.FundingSymbol(s.cfg.Currency))
	if err != nil {
		return models.Decision{}, fmt.Errorf("获取活跃挂单失败: %w", err)
	}
	if len(offers) > 1 {
		s.logger.Warn("发现多个活跃挂单, 取消全部", zap.Int("count", len(offers)))
		if err := s.account.CancelAllOffers(ctx, s.cfg.Currency); err != nil {
			return models.Decision{}, fmt.Errorf("%w: 取消全部挂单失败: %w", models.ErrDuplicateOffers, err)
		}
		return models.Decision{}, fmt.Errorf("%w: %d offers for %s", models.ErrDuplicateOffers, len(offers), s.cfg.Currency)
	}

	var active *models.FundingOffer
	if len(offers) == 1 {
		active = &offers[0]
	}

	available, total := ReconcileBalances(*wallet, active)
	if available < s.cfg.MinAmount {
		s.logger.Info("可用余额不足",
			zap.Float64("available", available), zap.Float64("min_amount", s.cfg.MinAmount))
		return models.Skip(ReasonInsufficientBalance), nil
	}

	rate, period, err := s.discoverRate(ctx)
	if err != nil {
		return models.Decision{}, err
	}
	return Decide(s.cfg, available, total, active, rate, period), nil
}

// Apply 通过交易所执行决策: 先按ID取消, 再提交隐藏的限价放贷单。
func (s *SimpleStrategy) Apply(ctx context.Context, d models.Decision) error {
	if d.Cancels() {
		s.logger.Info("取消现有挂单", zap.Int64("offer_id", d.OfferID))
		if err := s.account.CancelOffer(ctx, d.OfferID); err != nil {
			return fmt.Errorf("取消挂单 %d 失败: %w", d.OfferID, err)
		}
		metrics.OffersCanceled.WithLabelValues(s.cfg.Currency).Inc()
	}
	if !d.Submits() {
		if d.Action == models.ActionSkip {
			s.logger.Info("跳过本周期", zap.String("reason", d.Reason))
		}
		return nil
	}

	offer, err := s.account.SubmitOffer(ctx, models.OfferRequest{
		Symbol: exchange.FundingSymbol(s.cfg.Currency),
		Amount: d.Amount,
		Rate:   d.Rate,
		Period: d.Period,
		Hidden: true,
		Type:   models.OfferTypeLimit,
	})
	if err != nil {
		return fmt.Errorf("提交放贷单失败: %w", err)
	}
	metrics.OffersSubmitted.WithLabelValues(s.cfg.Currency).Inc()
	metrics.OfferRate.WithLabelValues(s.cfg.Currency).Set(d.Rate)
	s.logger.Sugar().Infof("已挂单 %.2f %s @ %s, %d天 (ID %d)",
		d.Amount, s.cfg.Currency, models.FormatRate(d.Rate), d.Period, offer.ID)
	return nil
}

func (s *SimpleStrategy) Execute(ctx context.Context) (models.Decision, error) {
	d, err := s.Evaluate(ctx)
	if err != nil {
		return d, err
	}
	return d, s.Apply(ctx, d)
}
