package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"funding-offer-bot-go/internal/models"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "secret"

// fakeBitfinex records signed requests and answers with canned payloads per path.
type fakeBitfinex struct {
	sync.Mutex
	t         *testing.T
	responses map[string]string
	status    map[string]int
	bodies    map[string]map[string]any
	nonces    []int64
	rawQuery  string
}

func newFakeBitfinex(t *testing.T) (*fakeBitfinex, *httptest.Server) {
	f := &fakeBitfinex{
		t:         t,
		responses: make(map[string]string),
		status:    make(map[string]int),
		bodies:    make(map[string]map[string]any),
	}
	return f, httptest.NewServer(f)
}

func (f *fakeBitfinex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()

	body, _ := io.ReadAll(r.Body)
	if r.Method == http.MethodPost {
		nonce := r.Header.Get("bfx-nonce")
		mac := hmac.New(sha512.New384, []byte(testSecret))
		mac.Write([]byte("/api" + r.URL.Path + nonce + string(body)))
		assert.Equal(f.t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("bfx-signature"), "signature mismatch")
		assert.Equal(f.t, "key", r.Header.Get("bfx-apikey"))

		n, err := strconv.ParseInt(nonce, 10, 64)
		assert.NoError(f.t, err)
		f.nonces = append(f.nonces, n)

		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)
		f.bodies[r.URL.Path] = decoded
	} else {
		f.rawQuery = r.URL.RawQuery
	}

	if code, ok := f.status[r.URL.Path]; ok {
		w.WriteHeader(code)
	}
	resp, ok := f.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		resp = `["error",10020,"unknown path"]`
	}
	_, _ = io.WriteString(w, resp)
}

func newTestLive(url string) *LiveExchange {
	return NewLiveExchange(models.Credentials{APIKey: "key", SecretKey: testSecret}, url, url, 6000, zap.NewNop())
}

func TestGetWalletsDecodesRows(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/auth/r/wallets"] = `[["exchange","BTC",1.5,0,1.2,null,null],["funding","USD",1000.5,0,250.25,null,null]]`

	wallets, err := newTestLive(srv.URL).GetWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	w, err := FundingWallet(wallets, "USD")
	require.NoError(t, err)
	assert.Equal(t, 1000.5, w.Balance)
	assert.Equal(t, 250.25, w.AvailableBalance)

	_, err = FundingWallet(wallets, "EUR")
	assert.ErrorIs(t, err, models.ErrWalletNotFound)
}

func TestGetActiveOffersDecodesRows(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/auth/r/funding/offers/fUSD"] = `[[41578287,"fUSD",1573040000000,1573040000000,150.5,150.5,"LIMIT",null,null,64,"ACTIVE",null,null,null,0.0005,2,false,1,null,false,null]]`

	offers, err := newTestLive(srv.URL).GetActiveOffers(context.Background(), "fUSD")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, models.FundingOffer{
		ID: 41578287, Symbol: "fUSD", Amount: 150.5, Rate: 0.0005, Period: 2, Type: "LIMIT", Hidden: true,
	}, offers[0])
}

func TestSubmitOfferSendsDecimalStrings(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/auth/w/funding/offer/submit"] = `[1573040000000,"fon-req",null,null,[7,"fUSD",1,1,100,100,"LIMIT",null,null,64,"ACTIVE",null,null,null,0.00099,10,false,1,null,false,null],null,"SUCCESS","Submitting funding offer"]`

	offer, err := newTestLive(srv.URL).SubmitOffer(context.Background(), models.OfferRequest{
		Symbol: "fUSD", Amount: 100, Rate: 0.00099, Period: 10, Hidden: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), offer.ID)

	body := f.bodies["/v2/auth/w/funding/offer/submit"]
	assert.Equal(t, "LIMIT", body["type"])
	assert.Equal(t, "fUSD", body["symbol"])
	assert.Equal(t, "100", body["amount"])
	assert.Equal(t, "0.00099", body["rate"])
	assert.Equal(t, float64(10), body["period"])
	assert.Equal(t, float64(64), body["flags"])
}

func TestNotificationErrorStatus(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/auth/w/funding/offer/cancel"] = `[1573040000000,"foc-req",null,null,null,null,"ERROR","offer not found"]`

	err := newTestLive(srv.URL).CancelOffer(context.Background(), 5)
	require.Error(t, err)
	var apiErr *models.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Msg, "offer not found")
	assert.Equal(t, float64(5), f.bodies["/v2/auth/w/funding/offer/cancel"]["id"])
}

func TestErrorPayloadIsTransportError(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.status["/v2/auth/r/wallets"] = http.StatusInternalServerError
	f.responses["/v2/auth/r/wallets"] = `["error",10100,"apikey: invalid"]`

	_, err := newTestLive(srv.URL).GetWallets(context.Background())
	require.Error(t, err)

	var transportErr *models.TransportError
	require.True(t, errors.As(err, &transportErr))
	var apiErr *models.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 10100, apiErr.Code)
	assert.Equal(t, models.OutcomeTransport, models.Classify(err))
}

func TestNonceStrictlyIncreases(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/auth/w/funding/offer/cancel/all"] = `[1573040000000,"foc_all-req",null,null,null,null,"SUCCESS","ok"]`

	ex := newTestLive(srv.URL)
	for i := 0; i < 5; i++ {
		require.NoError(t, ex.CancelAllOffers(context.Background(), "USD"))
	}
	require.Len(t, f.nonces, 5)
	for i := 1; i < len(f.nonces); i++ {
		assert.Greater(t, f.nonces[i], f.nonces[i-1])
	}
	assert.Equal(t, "USD", f.bodies["/v2/auth/w/funding/offer/cancel/all"]["currency"])
}

func TestMissingCredentials(t *testing.T) {
	ex := NewLiveExchange(models.Credentials{}, "http://127.0.0.1:1", "http://127.0.0.1:1", 60, zap.NewNop())
	_, err := ex.GetWallets(context.Background())
	assert.ErrorIs(t, err, models.ErrMissingCredentials)
}

func TestGetCandles(t *testing.T) {
	f, srv := newFakeBitfinex(t)
	defer srv.Close()
	f.responses["/v2/candles/trade:5m:fUSD:p2/hist"] = `[[1000,0.0001,0.0002,0.0005,0.00009,12345.6],[1300,0.0002,0.0003,0.0004,0.0001,100]]`

	candles, err := newTestLive(srv.URL).GetCandles(context.Background(), models.CandleQuery{
		Symbol: "fUSD", Period: 2, Start: 500, Limit: 10000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, models.Candle{Timestamp: 1000, Open: 0.0001, Close: 0.0002, High: 0.0005, Low: 0.00009, Volume: 12345.6}, candles[0])
	assert.Equal(t, "limit=10000&sort=1&start=500", f.rawQuery)
}
