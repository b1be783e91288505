package models

import (
	"fmt"
	"time"
)

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	Mode              string                 `yaml:"mode"`                // 运行模式: live 或 paper
	PollIntervalMs    int                    `yaml:"poll_interval_ms"`    // 两次轮询之间的间隔 (毫秒)
	APIURL            string                 `yaml:"api_url"`             // 认证REST接口地址
	PublicAPIURL      string                 `yaml:"public_api_url"`      // 公共REST接口地址 (K线)
	RequestsPerMinute int                    `yaml:"requests_per_minute"` // 每分钟最多请求次数
	DBPath            string                 `yaml:"db_path"`             // 决策日志数据库路径, 为空则不记录
	MetricsAddr       string                 `yaml:"metrics_addr"`        // Prometheus 监听地址, 为空则关闭
	LogConfig         LogConfig              `yaml:"log"`                 // 日志配置
	Paper             PaperConfig            `yaml:"paper"`               // 模拟盘配置
	SimpleStrategies  []StrategyConfig       `yaml:"-"`                   // 放贷策略, 按配置文件中的顺序
	BasicStrategies   []BasicStrategyConfig  `yaml:"-"`                   // 钱包报告策略, 按配置文件中的顺序
	Credentials       map[string]Credentials `yaml:"-"`                   // 按 keys 引用解析出的API密钥
}

// PollInterval 返回两次轮询之间的固定间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `yaml:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `yaml:"output"`      // 输出模式: "console", "file", "both"
	File       string `yaml:"file"`        // 日志文件路径
	MaxSize    int    `yaml:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `yaml:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `yaml:"compress"`    // 是否压缩旧日志文件
}

// PaperConfig 模拟盘的初始资金
type PaperConfig struct {
	Balances map[string]float64 `yaml:"balances"` // 币种 -> 初始融资钱包余额
}

// StrategyConfig 单个放贷策略实例的参数, 加载后不可变
type StrategyConfig struct {
	Name                     string  `yaml:"-"`
	Keys                     string  `yaml:"keys"`                         // 凭证引用, 对应 API_KEY_<keys> / SECRET_KEY_<keys>
	Currency                 string  `yaml:"currency"`                     // 币种, e.g., "USD"
	MinAmount                float64 `yaml:"min_amount"`                   // 最小放贷金额
	MaxBalancePercentPerLoan float64 `yaml:"max_balance_percent_per_loan"` // 单笔放贷占总余额的上限 (0-1)
	MinRate                  float64 `yaml:"min_rate"`                     // 可接受的最低日利率
	TargetPeriod             int     `yaml:"target_period"`                // 目标放贷天数 (>=2)
	MonitoredWindow          int     `yaml:"monitored_window"`             // K线回看窗口 (小时)
	NthHighestCandle         int     `yaml:"nth_highest_candle"`           // 取第N高的K线最高价 (从1开始)
}

// BasicStrategyConfig 钱包报告策略的参数
type BasicStrategyConfig struct {
	Name string `yaml:"-"`
	Keys string `yaml:"keys"`
}

// Credentials 一组API密钥
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Wallet 定义了一个钱包的余额快照
type Wallet struct {
	Type             string  `json:"type"` // "exchange", "margin" 或 "funding"
	Currency         string  `json:"currency"`
	Balance          float64 `json:"balance"`           // 总余额
	AvailableBalance float64 `json:"available_balance"` // 未被占用的余额
}

// FundingOffer 定义了一个挂出的放贷单
type FundingOffer struct {
	ID     int64   `json:"id"`
	Symbol string  `json:"symbol"` // e.g., "fUSD"
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`   // 日利率 (小数)
	Period int     `json:"period"` // 天数
	Type   string  `json:"type"`
	Hidden bool    `json:"hidden"`
}

// OfferType 放贷单类型
type OfferType string

const (
	OfferTypeLimit OfferType = "LIMIT"
)

// OfferRequest 提交放贷单所需的参数
type OfferRequest struct {
	Symbol string
	Amount float64
	Rate   float64
	Period int
	Hidden bool
	Type   OfferType
}

// Candle 定义了一根融资K线, 决策只使用 High
type Candle struct {
	Timestamp int64   `csv:"mts"`
	Open      float64 `csv:"open"`
	Close     float64 `csv:"close"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Volume    float64 `csv:"volume"`
}

// Section K线查询的区段
type Section string

const (
	SectionHist Section = "hist"
)

// Sort K线排序方向
type Sort int

const (
	SortAsc Sort = 1
)

// CandleQuery 融资K线查询参数
type CandleQuery struct {
	Symbol    string  // e.g., "fUSD"
	TimeFrame string  // e.g., "5m"
	Period    int     // 融资期限 (天)
	Section   Section // 默认 hist
	Sort      Sort    // 默认升序
	Start     int64   // 起始时间 (毫秒)
	Limit     int     // 0 表示使用交易所默认值
}

// Error 定义了交易所返回的错误信息结构: ["error", code, "message"]
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Error 方法使得 Error 实现了 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("API Error: code=%d, msg=%s", e.Code, e.Msg)
}
