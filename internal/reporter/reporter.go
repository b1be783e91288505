package reporter

import (
	"fmt"
	"funding-offer-bot-go/internal/models"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary 汇总一个轮询周期内所有策略的结果
type Summary struct {
	Cycles    int
	Submitted int
	Canceled  int
	Skipped   int
	Failed    int
}

// Summarize 统计一组周期记录
func Summarize(records []models.CycleRecord) Summary {
	var s Summary
	for _, r := range records {
		s.Cycles++
		if r.Outcome != models.OutcomeOK {
			s.Failed++
			continue
		}
		switch r.Action {
		case models.ActionSkip:
			s.Skipped++
		case models.ActionSubmitOnly:
			s.Submitted++
		case models.ActionCancelAndSubmit:
			s.Submitted++
			s.Canceled++
		case models.ActionCancelOnly:
			s.Canceled++
		}
	}
	return s
}

// RenderTick 渲染一个轮询周期的结果表格
func RenderTick(w io.Writer, records []models.CycleRecord) Summary {
	t := newTable(w)
	t.SetTitle("本轮结果")
	t.AppendHeader(table.Row{"策略", "币种", "动作", "金额", "日利率", "年化", "天数", "结果"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Strategy, r.Currency, actionCell(r), amountCell(r), rateCell(r), aprCell(r), periodCell(r), outcomeCell(r)})
	}
	s := Summarize(records)
	t.AppendFooter(table.Row{"合计", "", fmt.Sprintf("挂单 %d / 取消 %d", s.Submitted, s.Canceled), "", "", "", "", fmt.Sprintf("失败 %d", s.Failed)})
	t.Render()
	return s
}

// RenderHistory 渲染决策日志
func RenderHistory(w io.Writer, records []models.CycleRecord) {
	t := newTable(w)
	t.SetTitle("决策日志")
	t.AppendHeader(table.Row{"时间", "周期ID", "策略", "币种", "动作", "金额", "日利率", "年化", "天数", "结果", "耗时"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Time.Local().Format(time.DateTime),
			r.CycleID,
			r.Strategy,
			r.Currency,
			actionCell(r),
			amountCell(r),
			rateCell(r),
			aprCell(r),
			periodCell(r),
			outcomeCell(r),
			fmt.Sprintf("%.2fs", r.Elapsed),
		})
	}
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	return t
}

func actionCell(r models.CycleRecord) string {
	if r.Action == models.ActionSkip && r.Reason != "" {
		return fmt.Sprintf("%s (%s)", r.Action, r.Reason)
	}
	return string(r.Action)
}

func amountCell(r models.CycleRecord) string {
	if r.Amount == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", r.Amount)
}

func rateCell(r models.CycleRecord) string {
	if r.Rate == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f%%", r.Rate*100)
}

func aprCell(r models.CycleRecord) string {
	if r.Rate == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", models.APR(r.Rate))
}

func periodCell(r models.CycleRecord) string {
	if r.Period == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", r.Period)
}

func outcomeCell(r models.CycleRecord) string {
	if r.Error != "" {
		return fmt.Sprintf("%s: %s", r.Outcome, text.Trim(r.Error, 60))
	}
	return r.Outcome
}
