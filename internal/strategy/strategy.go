package strategy

import (
	"context"
	"funding-offer-bot-go/internal/models"
)

// Strategy 是所有策略类型的统一抽象。
// 新的策略类型只需实现该接口，无需改动 runner。
type Strategy interface {
	Name() string
	Currency() string
	// Execute 完成一次评估并执行得出的决策。
	Execute(ctx context.Context) (models.Decision, error)
}
