package models

import "time"

// CycleRecord 一个策略周期的结果, 只写入审计日志, 引擎不会读取
type CycleRecord struct {
	CycleID  string    `json:"cycle_id"` // 周期ID (base62 编码的 UUID)
	Strategy string    `json:"strategy"` // 策略名称
	Currency string    `json:"currency"` // 币种
	Time     time.Time `json:"time"`     // 周期开始时间
	Action   Action    `json:"action"`   // 决策动作
	Reason   string    `json:"reason,omitempty"`
	Amount   float64   `json:"amount,omitempty"`
	Rate     float64   `json:"rate,omitempty"`
	Period   int       `json:"period,omitempty"`
	Outcome  string    `json:"outcome"`         // 见 Classify
	Error    string    `json:"error,omitempty"` // 失败原因
	Elapsed  float64   `json:"elapsed_seconds"` // 耗时 (秒)
}
