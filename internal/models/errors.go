package models

import (
	"errors"
	"fmt"
)

var (
	ErrWalletNotFound     = errors.New("funding wallet not found")
	ErrDuplicateOffers    = errors.New("duplicate active offers detected")
	ErrInsufficientData   = errors.New("not enough candles fetched")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
)

// TransportError 包装所有底层网络/API错误
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Outcome labels
const (
	OutcomeOK               = "ok"
	OutcomeWalletNotFound   = "wallet_not_found"
	OutcomeDuplicateOffers  = "duplicate_offers"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeTransport        = "transport"
	OutcomeError            = "error"
)

// Classify 将错误映射为周期结果标签, 用于日志、指标和决策日志
func Classify(err error) string {
	var apiErr *Error
	var transportErr *TransportError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrWalletNotFound):
		return OutcomeWalletNotFound
	case errors.Is(err, ErrDuplicateOffers):
		return OutcomeDuplicateOffers
	case errors.Is(err, ErrInsufficientData):
		return OutcomeInsufficientData
	case errors.As(err, &transportErr), errors.As(err, &apiErr):
		return OutcomeTransport
	default:
		return OutcomeError
	}
}
