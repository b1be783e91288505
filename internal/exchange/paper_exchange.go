package exchange

import (
	"context"
	"errors"
	"fmt"
	"funding-offer-bot-go/internal/models"
	"sort"
	"strings"
	"sync"
)

const (
	minOfferPeriod = 2
	maxOfferPeriod = 120
)

// PaperExchange 实现了 Exchange 接口，用于模拟盘。
// 钱包和挂单保存在内存中，K线委托给真实的行情源。
type PaperExchange struct {
	market      MarketData
	wallets     map[string]*models.Wallet
	offers      map[int64]*models.FundingOffer
	NextOfferID int64
	Submitted   int
	Canceled    int
	mu          sync.Mutex
}

// NewPaperExchange 创建一个新的 PaperExchange 实例, balances 为各币种融资钱包的初始余额。
func NewPaperExchange(balances map[string]float64, market MarketData) *PaperExchange {
	wallets := make(map[string]*models.Wallet, len(balances))
	for currency, amount := range balances {
		wallets[currency] = &models.Wallet{
			Type:             WalletTypeFunding,
			Currency:         currency,
			Balance:          amount,
			AvailableBalance: amount,
		}
	}
	return &PaperExchange{
		market:      market,
		wallets:     wallets,
		offers:      make(map[int64]*models.FundingOffer),
		NextOfferID: 1,
	}
}

// GetWallets 返回按币种排序的钱包快照。
func (e *PaperExchange) GetWallets(ctx context.Context) ([]models.Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallets := make([]models.Wallet, 0, len(e.wallets))
	for _, w := range e.wallets {
		wallets = append(wallets, *w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Currency < wallets[j].Currency })
	return wallets, nil
}

func (e *PaperExchange) GetActiveOffers(ctx context.Context, symbol string) ([]models.FundingOffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var offers []models.FundingOffer
	for _, o := range e.offers {
		if o.Symbol == symbol {
			offers = append(offers, *o)
		}
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
	return offers, nil
}

// CancelAllOffers 取消币种下的所有挂单并释放资金。
func (e *PaperExchange) CancelAllOffers(ctx context.Context, currency string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbol := FundingSymbol(currency)
	for id, o := range e.offers {
		if o.Symbol == symbol {
			e.releaseLocked(o)
			delete(e.offers, id)
			e.Canceled++
		}
	}
	return nil
}

func (e *PaperExchange) CancelOffer(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.offers[id]
	if !ok {
		return &models.Error{Code: 10001, Msg: fmt.Sprintf("offer %d not found", id)}
	}
	e.releaseLocked(o)
	delete(e.offers, id)
	e.Canceled++
	return nil
}

// SubmitOffer 校验并挂出放贷单，锁定相应的可用余额。
func (e *PaperExchange) SubmitOffer(ctx context.Context, req models.OfferRequest) (*models.FundingOffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Period < minOfferPeriod || req.Period > maxOfferPeriod {
		return nil, &models.Error{Code: 10020, Msg: fmt.Sprintf("period must be between %d and %d", minOfferPeriod, maxOfferPeriod)}
	}
	if req.Amount <= 0 || req.Rate <= 0 {
		return nil, &models.Error{Code: 10020, Msg: "amount and rate must be positive"}
	}
	w, ok := e.wallets[strings.TrimPrefix(req.Symbol, FundingSymbolPrefix)]
	if !ok {
		return nil, &models.Error{Code: 10001, Msg: "unknown symbol " + req.Symbol}
	}
	if req.Amount > w.AvailableBalance {
		return nil, &models.Error{Code: 10001, Msg: fmt.Sprintf("not enough %s balance: %.8f > %.8f", w.Currency, req.Amount, w.AvailableBalance)}
	}
	if req.Type == "" {
		req.Type = models.OfferTypeLimit
	}

	w.AvailableBalance -= req.Amount
	offer := &models.FundingOffer{
		ID:     e.NextOfferID,
		Symbol: req.Symbol,
		Amount: req.Amount,
		Rate:   req.Rate,
		Period: req.Period,
		Type:   string(req.Type),
		Hidden: req.Hidden,
	}
	e.offers[offer.ID] = offer
	e.NextOfferID++
	e.Submitted++

	placed := *offer
	return &placed, nil
}

func (e *PaperExchange) GetCandles(ctx context.Context, q models.CandleQuery) ([]models.Candle, error) {
	if e.market == nil {
		return nil, errors.New("paper exchange has no market data source")
	}
	return e.market.GetCandles(ctx, q)
}

// releaseLocked 把挂单金额退回可用余额。必须在持有锁的情况下调用。
func (e *PaperExchange) releaseLocked(o *models.FundingOffer) {
	if w, ok := e.wallets[strings.TrimPrefix(o.Symbol, FundingSymbolPrefix)]; ok {
		w.AvailableBalance += o.Amount
	}
}
