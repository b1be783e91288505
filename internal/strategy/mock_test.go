package strategy

import (
	"context"
	"funding-offer-bot-go/internal/models"
	"sync"
)

// mockAccount is a mock implementation of the AccountState interface for testing.
type mockAccount struct {
	sync.Mutex
	wallets      []models.Wallet
	offers       []models.FundingOffer
	walletErr    error
	submitErr    error
	cancelAllErr error
	cancelAllFor []string
	canceledIDs  []int64
	submitted    []models.OfferRequest
}

func (m *mockAccount) GetWallets(ctx context.Context) ([]models.Wallet, error) {
	m.Lock()
	defer m.Unlock()
	return m.wallets, m.walletErr
}

func (m *mockAccount) GetActiveOffers(ctx context.Context, symbol string) ([]models.FundingOffer, error) {
	m.Lock()
	defer m.Unlock()
	out := make([]models.FundingOffer, len(m.offers))
	copy(out, m.offers)
	return out, nil
}

func (m *mockAccount) CancelAllOffers(ctx context.Context, currency string) error {
	m.Lock()
	defer m.Unlock()
	m.cancelAllFor = append(m.cancelAllFor, currency)
	return m.cancelAllErr
}

func (m *mockAccount) CancelOffer(ctx context.Context, id int64) error {
	m.Lock()
	defer m.Unlock()
	m.canceledIDs = append(m.canceledIDs, id)
	return nil
}

func (m *mockAccount) SubmitOffer(ctx context.Context, req models.OfferRequest) (*models.FundingOffer, error) {
	m.Lock()
	defer m.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return &models.FundingOffer{ID: int64(len(m.submitted)), Symbol: req.Symbol, Amount: req.Amount, Rate: req.Rate, Period: req.Period}, nil
}

func (m *mockAccount) mutations() int {
	m.Lock()
	defer m.Unlock()
	return len(m.cancelAllFor) + len(m.canceledIDs) + len(m.submitted)
}

// mockMarket returns candles keyed by period and records every query.
type mockMarket struct {
	sync.Mutex
	byPeriod map[int][]models.Candle
	errs     map[int]error
	queries  []models.CandleQuery
}

func (m *mockMarket) GetCandles(ctx context.Context, q models.CandleQuery) ([]models.Candle, error) {
	m.Lock()
	defer m.Unlock()
	m.queries = append(m.queries, q)
	if err := m.errs[q.Period]; err != nil {
		return nil, err
	}
	src := m.byPeriod[q.Period]
	out := make([]models.Candle, len(src))
	copy(out, src)
	return out, nil
}

func (m *mockMarket) periods() []int {
	m.Lock()
	defer m.Unlock()
	var p []int
	for _, q := range m.queries {
		p = append(p, q.Period)
	}
	return p
}

func highs(values ...float64) []models.Candle {
	candles := make([]models.Candle, len(values))
	for i, v := range values {
		candles[i] = models.Candle{Timestamp: int64(i) * 300000, High: v}
	}
	return candles
}
