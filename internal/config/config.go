package config

import (
	"errors"
	"fmt"
	"funding-offer-bot-go/internal/models"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"

	DefaultPollIntervalMs    = 1000
	DefaultRequestsPerMinute = 60
	DefaultAPIURL            = "https://api.bitfinex.com"
	DefaultPublicAPIURL      = "https://api-pub.bitfinex.com"

	MinPeriod = 2
	MaxPeriod = 120
)

// fileConfig 对应YAML文件的结构; 策略映射保留为节点以维持文件中的顺序
type fileConfig struct {
	models.Config    `yaml:",inline"`
	SimpleStrategies yaml.Node `yaml:"simple_strategies"`
	BasicStrategies  yaml.Node `yaml:"basic_strategies"`
}

// LoadConfig 从指定路径加载YAML配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析并校验YAML配置, 不解析凭证
func Parse(data []byte) (*models.Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	cfg := fc.Config

	var err error
	if cfg.SimpleStrategies, err = decodeOrdered[models.StrategyConfig](&fc.SimpleStrategies, func(s *models.StrategyConfig, name string) {
		s.Name = name
	}); err != nil {
		return nil, err
	}
	if cfg.BasicStrategies, err = decodeOrdered[models.BasicStrategyConfig](&fc.BasicStrategies, func(s *models.BasicStrategyConfig, name string) {
		s.Name = name
	}); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeOrdered 按文档顺序解码 name -> 策略 的映射
func decodeOrdered[T any](node *yaml.Node, setName func(*T, string)) ([]T, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping of strategies", models.ErrInvalidConfig, node.Line)
	}
	out := make([]T, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var item T
		if err := node.Content[i+1].Decode(&item); err != nil {
			return nil, fmt.Errorf("%w: strategy %q: %v", models.ErrInvalidConfig, name, err)
		}
		setName(&item, name)
		out = append(out, item)
	}
	return out, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeLive
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PublicAPIURL == "" {
		cfg.PublicAPIURL = DefaultPublicAPIURL
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// Validate 校验所有策略参数, 任何错误都包装 ErrInvalidConfig
func Validate(cfg *models.Config) error {
	if cfg.Mode != ModeLive && cfg.Mode != ModePaper {
		return fmt.Errorf("%w: unknown mode %q", models.ErrInvalidConfig, cfg.Mode)
	}
	if len(cfg.SimpleStrategies) == 0 && len(cfg.BasicStrategies) == 0 {
		return fmt.Errorf("%w: no strategies configured", models.ErrInvalidConfig)
	}

	seen := make(map[string]bool)
	var errs []error
	for _, s := range cfg.SimpleStrategies {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate strategy name %q", s.Name))
		}
		seen[s.Name] = true
		errs = append(errs, validateStrategy(s, cfg.Mode == ModeLive)...)
	}
	for _, s := range cfg.BasicStrategies {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate strategy name %q", s.Name))
		}
		seen[s.Name] = true
		if s.Keys == "" && cfg.Mode == ModeLive {
			errs = append(errs, fmt.Errorf("%s: keys is required", s.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	return nil
}

// validateStrategy 模拟盘不需要 keys
func validateStrategy(s models.StrategyConfig, requireKeys bool) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{s.Name}, args...)...))
	}
	if requireKeys && s.Keys == "" {
		fail("keys is required")
	}
	if s.Currency == "" {
		fail("currency is required")
	}
	if s.MinAmount <= 0 {
		fail("min_amount must be positive, got %v", s.MinAmount)
	}
	if s.MaxBalancePercentPerLoan <= 0 || s.MaxBalancePercentPerLoan > 1 {
		fail("max_balance_percent_per_loan must be in (0, 1], got %v", s.MaxBalancePercentPerLoan)
	}
	if s.MinRate < 0 {
		fail("min_rate must not be negative, got %v", s.MinRate)
	}
	if s.TargetPeriod < MinPeriod || s.TargetPeriod > MaxPeriod {
		fail("target_period must be in [%d, %d], got %d", MinPeriod, MaxPeriod, s.TargetPeriod)
	}
	if s.MonitoredWindow <= 0 {
		fail("monitored_window must be positive, got %d", s.MonitoredWindow)
	}
	if s.NthHighestCandle < 1 {
		fail("nth_highest_candle must be at least 1, got %d", s.NthHighestCandle)
	}
	return errs
}

// ResolveCredentials 从环境变量 API_KEY_<keys> / SECRET_KEY_<keys> 中读取所有引用到的密钥
func ResolveCredentials(cfg *models.Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	refs := make([]string, 0, len(cfg.SimpleStrategies)+len(cfg.BasicStrategies))
	for _, s := range cfg.SimpleStrategies {
		refs = append(refs, s.Keys)
	}
	for _, s := range cfg.BasicStrategies {
		refs = append(refs, s.Keys)
	}

	cfg.Credentials = make(map[string]models.Credentials, len(refs))
	for _, ref := range refs {
		if _, ok := cfg.Credentials[ref]; ok {
			continue
		}
		apiKeyEnv := "API_KEY_" + ref
		secretKeyEnv := "SECRET_KEY_" + ref
		apiKey, ok := lookup(apiKeyEnv)
		if !ok || apiKey == "" {
			return fmt.Errorf("%w: %s env variable is not set", models.ErrMissingCredentials, apiKeyEnv)
		}
		secretKey, ok := lookup(secretKeyEnv)
		if !ok || secretKey == "" {
			return fmt.Errorf("%w: %s env variable is not set", models.ErrMissingCredentials, secretKeyEnv)
		}
		cfg.Credentials[ref] = models.Credentials{APIKey: apiKey, SecretKey: secretKey}
	}
	return nil
}
