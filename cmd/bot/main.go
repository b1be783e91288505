package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"funding-offer-bot-go/internal/config"
	"funding-offer-bot-go/internal/downloader"
	"funding-offer-bot-go/internal/exchange"
	"funding-offer-bot-go/internal/journal"
	"funding-offer-bot-go/internal/logger"
	"funding-offer-bot-go/internal/metrics"
	"funding-offer-bot-go/internal/models"
	"funding-offer-bot-go/internal/persistence"
	"funding-offer-bot-go/internal/reporter"
	"funding-offer-bot-go/internal/runner"
	"funding-offer-bot-go/internal/strategy"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.yaml", "path to the config file")
	mode := flag.String("mode", "run", "command: run, history or export")
	strategyName := flag.String("strategy", "", "history: only show this strategy")
	limit := flag.Int("limit", 50, "history: number of records to show")
	currency := flag.String("currency", "USD", "export: funding currency")
	period := flag.Int("period", 2, "export: funding period in days")
	hours := flag.Int("hours", 24, "export: lookback window in hours")
	outPath := flag.String("out", "", "export: output CSV file (default data/f<CUR>-p<period>.csv)")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 YAML 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "run":
		err = runBot(ctx, cfg)
	case "history":
		err = showHistory(cfg, *strategyName, *limit)
	case "export":
		path := *outPath
		if path == "" {
			path = fmt.Sprintf("data/%s-p%d.csv", exchange.FundingSymbol(*currency), *period)
		}
		err = exportCandles(ctx, cfg, *currency, *period, *hours, path)
	default:
		err = fmt.Errorf("未知的运行模式: %s。请选择 'run', 'history' 或 'export'。", *mode)
	}
	if err != nil {
		logger.S().Fatal(err)
	}
}

// runBot 构建交易所和策略并启动轮询循环，直到收到退出信号
func runBot(ctx context.Context, cfg *models.Config) error {
	logger.S().Infof("--- 启动放贷机器人 (%s 模式) ---", cfg.Mode)

	public := exchange.NewLiveExchange(models.Credentials{}, cfg.APIURL, cfg.PublicAPIURL, cfg.RequestsPerMinute, logger.L())

	var accountFor func(keys string) exchange.Exchange
	switch cfg.Mode {
	case config.ModeLive:
		if err := config.ResolveCredentials(cfg, nil); err != nil {
			return err
		}
		clients := make(map[string]exchange.Exchange, len(cfg.Credentials))
		for ref, creds := range cfg.Credentials {
			clients[ref] = exchange.NewLiveExchange(creds, cfg.APIURL, cfg.PublicAPIURL, cfg.RequestsPerMinute, logger.L().With(zap.String("keys", ref)))
		}
		accountFor = func(keys string) exchange.Exchange { return clients[keys] }
	case config.ModePaper:
		paper := exchange.NewPaperExchange(cfg.Paper.Balances, public)
		accountFor = func(string) exchange.Exchange { return paper }
		logger.S().Infof("模拟盘初始余额: %v", cfg.Paper.Balances)
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.SimpleStrategies)+len(cfg.BasicStrategies))
	for _, sc := range cfg.SimpleStrategies {
		ex := accountFor(sc.Keys)
		strategies = append(strategies, strategy.NewSimpleStrategy(sc, ex, ex, logger.L()))
	}
	for _, bc := range cfg.BasicStrategies {
		strategies = append(strategies, strategy.NewBasicStrategy(bc, accountFor(bc.Keys), logger.L()))
	}

	var recorder runner.Recorder
	if cfg.DBPath != "" {
		repo, err := persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("无法打开决策日志数据库: %w", err)
		}
		defer repo.Close()

		j := journal.NewJournal(repo, logger.L())
		j.Start()
		defer j.Stop()
		recorder = j
	}

	metrics.Serve(ctx, cfg.MetricsAddr, nil, logger.L())

	runner.NewRunner(strategies, cfg.PollInterval(), recorder, logger.L()).Run(ctx)
	logger.S().Info("机器人已成功停止。")
	return nil
}

// showHistory 打印决策日志
func showHistory(cfg *models.Config, strategyName string, limit int) error {
	if cfg.DBPath == "" {
		return errors.New("配置中未设置 db_path，没有决策日志")
	}
	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("无法打开决策日志数据库: %w", err)
	}
	defer repo.Close()

	records, err := repo.LoadRecords(strategyName, limit)
	if err != nil {
		return fmt.Errorf("读取决策日志失败: %w", err)
	}
	reporter.RenderHistory(os.Stdout, records)
	return nil
}

// exportCandles 下载融资K线到CSV
func exportCandles(ctx context.Context, cfg *models.Config, currency string, period, hours int, path string) error {
	public := exchange.NewLiveExchange(models.Credentials{}, cfg.APIURL, cfg.PublicAPIURL, cfg.RequestsPerMinute, logger.L())
	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	if err := downloader.NewCandleDownloader(public, logger.L()).DownloadCandles(ctx, currency, period, path, start, end); err != nil {
		return err
	}
	candles, err := downloader.LoadCandles(path)
	if err != nil {
		return err
	}
	maxHigh := 0.0
	for _, c := range candles {
		if c.High > maxHigh {
			maxHigh = c.High
		}
	}
	logger.S().Infof("%s 共 %d 根K线, 最高 %s", path, len(candles), models.FormatRate(maxHigh))
	return nil
}
