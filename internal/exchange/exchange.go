package exchange

import (
	"context"
	"fmt"
	"funding-offer-bot-go/internal/models"
)

const (
	WalletTypeFunding   = "funding"
	FundingSymbolPrefix = "f"
)

// AccountState 定义了账户相关的查询和下单操作
type AccountState interface {
	GetWallets(ctx context.Context) ([]models.Wallet, error)
	GetActiveOffers(ctx context.Context, symbol string) ([]models.FundingOffer, error)
	CancelAllOffers(ctx context.Context, currency string) error
	CancelOffer(ctx context.Context, id int64) error
	SubmitOffer(ctx context.Context, req models.OfferRequest) (*models.FundingOffer, error)
}

// MarketData 定义了行情数据查询
type MarketData interface {
	GetCandles(ctx context.Context, q models.CandleQuery) ([]models.Candle, error)
}

// Exchange 定义了所有交易所实现必须提供的通用方法。
// 这使得策略可以在真实交易和模拟盘之间轻松切换。
type Exchange interface {
	AccountState
	MarketData
}

// FundingSymbol 返回币种对应的融资交易对, e.g., "USD" -> "fUSD"
func FundingSymbol(currency string) string {
	return FundingSymbolPrefix + currency
}

// FundingWallet 从钱包列表中找出指定币种的融资钱包
func FundingWallet(wallets []models.Wallet, currency string) (*models.Wallet, error) {
	for i := range wallets {
		if wallets[i].Type == WalletTypeFunding && wallets[i].Currency == currency {
			return &wallets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrWalletNotFound, currency)
}
