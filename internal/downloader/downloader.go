package downloader

import (
	"context"
	"fmt"
	"funding-offer-bot-go/internal/exchange"
	"funding-offer-bot-go/internal/models"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
)

const (
	timeFrame   = "5m"
	pageLimit   = 10000
	pagePause   = 200 * time.Millisecond
	candleWidth = 5 * time.Minute
)

// CandleDownloader 用于下载融资K线数据
type CandleDownloader struct {
	market exchange.MarketData
	logger *zap.Logger
	pause  time.Duration
}

// NewCandleDownloader 创建一个新的下载器实例
func NewCandleDownloader(market exchange.MarketData, logger *zap.Logger) *CandleDownloader {
	return &CandleDownloader{market: market, logger: logger, pause: pagePause}
}

// DownloadCandles 下载指定币种和期限在时间范围内的5分钟融资K线，并保存到CSV文件。
// 如果文件已存在，则会跳过下载，直接使用缓存。
func (d *CandleDownloader) DownloadCandles(ctx context.Context, currency string, period int, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		d.logger.Sugar().Infof("从缓存加载数据: %s", filePath)
		return nil
	}

	symbol := exchange.FundingSymbol(currency)
	d.logger.Sugar().Infof("开始下载 %s p%d 从 %s 到 %s 的K线数据...", symbol, period,
		startTime.Format(time.DateTime), endTime.Format(time.DateTime))

	var all []models.Candle
	for t := startTime; t.Before(endTime); {
		candles, err := d.market.GetCandles(ctx, models.CandleQuery{
			Symbol:    symbol,
			TimeFrame: timeFrame,
			Period:    period,
			Section:   models.SectionHist,
			Sort:      models.SortAsc,
			Start:     t.UnixMilli(),
			Limit:     pageLimit,
		})
		if err != nil {
			return fmt.Errorf("下载K线数据失败: %w", err)
		}
		if len(candles) == 0 {
			break
		}

		for _, c := range candles {
			if c.Timestamp >= endTime.UnixMilli() {
				break
			}
			all = append(all, c)
		}

		next := time.UnixMilli(candles[len(candles)-1].Timestamp).Add(candleWidth)
		if !next.After(t) {
			break
		}
		t = next
		d.logger.Sugar().Debugf("已下载数据至 %s", t.Format(time.DateTime))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pause):
		}
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建目录 %s: %w", dir, err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("无法创建文件 %s: %w", filePath, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&all, file); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	d.logger.Sugar().Infof("成功下载 %d 根K线到 %s", len(all), filePath)
	return nil
}

// LoadCandles 从CSV文件读取K线
func LoadCandles(filePath string) ([]models.Candle, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开文件 %s: %w", filePath, err)
	}
	defer file.Close()

	var candles []models.Candle
	if err := gocsv.UnmarshalFile(file, &candles); err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	return candles, nil
}
