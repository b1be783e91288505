package strategy

import (
	"context"
	"fmt"
	"funding-offer-bot-go/internal/exchange"
	"funding-offer-bot-go/internal/models"

	"go.uber.org/zap"
)

const ReasonReport = "report"

// BasicStrategy 只读取并打印所有钱包, 不做任何交易。
type BasicStrategy struct {
	cfg     models.BasicStrategyConfig
	account exchange.AccountState
	logger  *zap.Logger
}

func NewBasicStrategy(cfg models.BasicStrategyConfig, account exchange.AccountState, logger *zap.Logger) *BasicStrategy {
	return &BasicStrategy{
		cfg:     cfg,
		account: account,
		logger:  logger.With(zap.String("strategy", cfg.Name)),
	}
}

func (b *BasicStrategy) Name() string     { return b.cfg.Name }
func (b *BasicStrategy) Currency() string { return "" }

func (b *BasicStrategy) Execute(ctx context.Context) (models.Decision, error) {
	wallets, err := b.account.GetWallets(ctx)
	if err != nil {
		return models.Decision{}, fmt.Errorf("获取钱包失败: %w", err)
	}
	for _, w := range wallets {
		b.logger.Info("钱包",
			zap.String("type", w.Type),
			zap.String("currency", w.Currency),
			zap.Float64("balance", w.Balance),
			zap.Float64("available", w.AvailableBalance))
	}
	return models.Skip(ReasonReport), nil
}
