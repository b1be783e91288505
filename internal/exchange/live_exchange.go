package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"funding-offer-bot-go/internal/models"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// 放贷单 flags 中的隐藏位
const flagHidden = 64

// LiveExchange 实现了 Exchange 接口，用于与真实的 Bitfinex 交易所进行交互。
type LiveExchange struct {
	apiKey     string
	secretKey  string
	baseURL    string
	publicURL  string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     *zap.Logger
	mu         sync.Mutex
	lastNonce  int64
}

// NewLiveExchange 创建一个新的 LiveExchange 实例。
// 凭证为空时只能调用公共接口 (K线)。
func NewLiveExchange(creds models.Credentials, baseURL, publicURL string, requestsPerMinute int, logger *zap.Logger) *LiveExchange {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &LiveExchange{
		apiKey:     creds.APIKey,
		secretKey:  creds.SecretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicURL:  strings.TrimRight(publicURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    ratelimit.New(requestsPerMinute, ratelimit.Per(time.Minute)),
		logger:     logger,
	}
}

// nextNonce 返回严格递增的 nonce (微秒)
func (e *LiveExchange) nextNonce() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := time.Now().UnixMicro()
	if n <= e.lastNonce {
		n = e.lastNonce + 1
	}
	e.lastNonce = n
	return strconv.FormatInt(n, 10)
}

// sign 对 /api/v2/<path><nonce><body> 进行 HMAC-SHA384 签名。
func (e *LiveExchange) sign(payload string) string {
	h := hmac.New(sha512.New384, []byte(e.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// authRequest 发送签名的 POST 请求到 /v2/<path>
func (e *LiveExchange) authRequest(ctx context.Context, path string, body any) ([]byte, error) {
	if e.apiKey == "" || e.secretKey == "" {
		return nil, fmt.Errorf("%w: authenticated endpoint %s", models.ErrMissingCredentials, path)
	}

	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
	}

	nonce := e.nextNonce()
	signature := e.sign("/api/v2/" + path + nonce + string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v2/"+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("bfx-nonce", nonce)
	req.Header.Set("bfx-apikey", e.apiKey)
	req.Header.Set("bfx-signature", signature)

	e.logger.Debug("发送POST请求", zap.String("path", path), zap.ByteString("body", payload))
	return e.do(req, path)
}

// publicRequest 发送公共 GET 请求
func (e *LiveExchange) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := e.publicURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	e.logger.Debug("发送GET请求", zap.String("url", fullURL))
	return e.do(req, path)
}

// do 执行请求并处理交易所错误
func (e *LiveExchange) do(req *http.Request, op string) ([]byte, error) {
	e.limiter.Take()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("读取响应体失败: %w", err)}
	}

	if apiErr := parseError(body); apiErr != nil {
		return body, &models.TransportError{Op: op, Err: apiErr}
	}
	if resp.StatusCode != http.StatusOK {
		return body, &models.TransportError{Op: op, Err: fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))}
	}
	return body, nil
}

// parseError 识别 ["error", code, "message"] 格式的错误
func parseError(body []byte) *models.Error {
	var arr []any
	if json.Unmarshal(body, &arr) != nil || len(arr) < 3 {
		return nil
	}
	if tag, ok := arr[0].(string); !ok || tag != "error" {
		return nil
	}
	apiErr := &models.Error{}
	if code, ok := arr[1].(float64); ok {
		apiErr.Code = int(code)
	}
	apiErr.Msg, _ = arr[2].(string)
	return apiErr
}

// --- Exchange 接口实现 ---

// GetWallets 获取所有钱包。
func (e *LiveExchange) GetWallets(ctx context.Context) ([]models.Wallet, error) {
	data, err := e.authRequest(ctx, "auth/r/wallets", nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, &models.TransportError{Op: "auth/r/wallets", Err: err}
	}

	wallets := make([]models.Wallet, 0, len(rows))
	for _, row := range rows {
		wallets = append(wallets, models.Wallet{
			Type:             fieldString(row, 0),
			Currency:         fieldString(row, 1),
			Balance:          fieldFloat(row, 2),
			AvailableBalance: fieldFloat(row, 4),
		})
	}
	return wallets, nil
}

// GetActiveOffers 获取指定融资交易对的活跃放贷单。
func (e *LiveExchange) GetActiveOffers(ctx context.Context, symbol string) ([]models.FundingOffer, error) {
	path := "auth/r/funding/offers/" + symbol
	data, err := e.authRequest(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, &models.TransportError{Op: path, Err: err}
	}

	offers := make([]models.FundingOffer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, parseOffer(row))
	}
	return offers, nil
}

// CancelAllOffers 取消指定币种的所有放贷单。
func (e *LiveExchange) CancelAllOffers(ctx context.Context, currency string) error {
	const path = "auth/w/funding/offer/cancel/all"
	data, err := e.authRequest(ctx, path, map[string]string{"currency": currency})
	if err != nil {
		return err
	}
	_, err = parseNotification(data, path)
	return err
}

// CancelOffer 取消放贷单。
func (e *LiveExchange) CancelOffer(ctx context.Context, id int64) error {
	const path = "auth/w/funding/offer/cancel"
	data, err := e.authRequest(ctx, path, map[string]int64{"id": id})
	if err != nil {
		return err
	}
	_, err = parseNotification(data, path)
	return err
}

// SubmitOffer 提交放贷单。金额和利率以十进制字符串发送。
func (e *LiveExchange) SubmitOffer(ctx context.Context, req models.OfferRequest) (*models.FundingOffer, error) {
	const path = "auth/w/funding/offer/submit"
	if req.Type == "" {
		req.Type = models.OfferTypeLimit
	}
	body := map[string]any{
		"type":   string(req.Type),
		"symbol": req.Symbol,
		"amount": decimal.NewFromFloat(req.Amount).String(),
		"rate":   decimal.NewFromFloat(req.Rate).String(),
		"period": req.Period,
	}
	if req.Hidden {
		body["flags"] = flagHidden
	}

	data, err := e.authRequest(ctx, path, body)
	if err != nil {
		e.logger.Error("提交放贷单失败，交易所返回错误", zap.Error(err), zap.ByteString("raw_response", data))
		return nil, err
	}
	offerRow, err := parseNotification(data, path)
	if err != nil {
		return nil, err
	}
	offer := parseOffer(offerRow)
	return &offer, nil
}

// GetCandles 获取融资K线。
func (e *LiveExchange) GetCandles(ctx context.Context, q models.CandleQuery) ([]models.Candle, error) {
	if q.TimeFrame == "" {
		q.TimeFrame = "5m"
	}
	if q.Section == "" {
		q.Section = models.SectionHist
	}
	if q.Sort == 0 {
		q.Sort = models.SortAsc
	}
	path := fmt.Sprintf("/v2/candles/trade:%s:%s:p%d/%s", q.TimeFrame, q.Symbol, q.Period, q.Section)

	params := url.Values{}
	params.Set("sort", strconv.Itoa(int(q.Sort)))
	if q.Start > 0 {
		params.Set("start", strconv.FormatInt(q.Start, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	data, err := e.publicRequest(ctx, path, params)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, &models.TransportError{Op: path, Err: err}
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, models.Candle{
			Timestamp: fieldInt(row, 0),
			Open:      fieldFloat(row, 1),
			Close:     fieldFloat(row, 2),
			High:      fieldFloat(row, 3),
			Low:       fieldFloat(row, 4),
			Volume:    fieldFloat(row, 5),
		})
	}
	return candles, nil
}

// parseOffer 按位置解析放贷单数组
// [ID, SYMBOL, MTS_CREATED, MTS_UPDATED, AMOUNT, AMOUNT_ORIG, TYPE, _, _, FLAGS, STATUS, _, _, _, RATE, PERIOD, NOTIFY, HIDDEN, ...]
func parseOffer(row []any) models.FundingOffer {
	return models.FundingOffer{
		ID:     fieldInt(row, 0),
		Symbol: fieldString(row, 1),
		Amount: fieldFloat(row, 4),
		Type:   fieldString(row, 6),
		Rate:   fieldFloat(row, 14),
		Period: int(fieldInt(row, 15)),
		Hidden: fieldInt(row, 17) == 1,
	}
}

// parseNotification 解析写操作返回的通知
// [MTS, TYPE, MESSAGE_ID, null, DATA, CODE, STATUS, TEXT]
func parseNotification(data []byte, op string) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n []any
	if err := dec.Decode(&n); err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("解析通知失败: %w", err)}
	}
	if status := fieldString(n, 6); status != "SUCCESS" {
		return nil, &models.TransportError{Op: op, Err: &models.Error{Code: int(fieldInt(n, 5)), Msg: fmt.Sprintf("%s: %s", status, fieldString(n, 7))}}
	}
	payload, _ := fieldAt(n, 4).([]any)
	return payload, nil
}

func decodeRows(data []byte) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return rows, nil
}

func fieldAt(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func fieldString(row []any, i int) string {
	s, _ := fieldAt(row, i).(string)
	return s
}

func fieldFloat(row []any, i int) float64 {
	if n, ok := fieldAt(row, i).(json.Number); ok {
		f, _ := n.Float64()
		return f
	}
	return 0
}

func fieldInt(row []any, i int) int64 {
	n, ok := fieldAt(row, i).(json.Number)
	if !ok {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, _ := n.Float64()
	return int64(f)
}
