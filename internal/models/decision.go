package models

import "fmt"

// Action 一次评估得出的动作
type Action string

const (
	ActionSkip            Action = "SKIP"
	ActionCancelOnly      Action = "CANCEL"
	ActionCancelAndSubmit Action = "CANCEL_AND_SUBMIT"
	ActionSubmitOnly      Action = "SUBMIT"
)

// Decision 每个周期重新计算, 从不持久化到引擎内
type Decision struct {
	Action  Action
	Reason  string // 仅 Skip 使用
	OfferID int64  // 需要取消的放贷单
	Amount  float64
	Rate    float64
	Period  int
}

// Skip 保持现状
func Skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

// CancelOnly 只取消现有放贷单
func CancelOnly(offerID int64) Decision {
	return Decision{Action: ActionCancelOnly, OfferID: offerID}
}

// CancelAndSubmit 取消现有放贷单并重新挂单
func CancelAndSubmit(offerID int64, amount, rate float64, period int) Decision {
	return Decision{Action: ActionCancelAndSubmit, OfferID: offerID, Amount: amount, Rate: rate, Period: period}
}

// SubmitOnly 直接挂单
func SubmitOnly(amount, rate float64, period int) Decision {
	return Decision{Action: ActionSubmitOnly, Amount: amount, Rate: rate, Period: period}
}

// Cancels 是否需要取消现有放贷单
func (d Decision) Cancels() bool {
	return d.Action == ActionCancelOnly || d.Action == ActionCancelAndSubmit
}

// Submits 是否需要提交新的放贷单
func (d Decision) Submits() bool {
	return d.Action == ActionSubmitOnly || d.Action == ActionCancelAndSubmit
}

// APR 年化利率 (百分比)
func APR(rate float64) float64 {
	return rate * 100 * 365
}

// FormatRate 格式化为 "x.xxxx% / day (y.yy% APR)"
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.4f%% / day (%.2f%% APR)", rate*100, APR(rate))
}

func (d Decision) String() string {
	switch d.Action {
	case ActionSkip:
		return fmt.Sprintf("%s(%s)", d.Action, d.Reason)
	case ActionCancelOnly:
		return fmt.Sprintf("%s(id=%d)", d.Action, d.OfferID)
	default:
		return fmt.Sprintf("%s(%v @ %s, %dd)", d.Action, d.Amount, FormatRate(d.Rate), d.Period)
	}
}
