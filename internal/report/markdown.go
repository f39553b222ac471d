package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/pkg/logger"
)

// SummaryFileName is the market-wide report file
const SummaryFileName = "全市场汇总分析.md"

// MarkdownWriter renders reports into OutputDir.
// Implements contracts.StatsSink and contracts.SummarySink
type MarkdownWriter struct {
	outputDir string
	horizon   int
	logger    *logger.Logger
}

// NewMarkdownWriter creates a writer; horizon labels the return column
func NewMarkdownWriter(outputDir string, horizon int, log *logger.Logger) *MarkdownWriter {
	return &MarkdownWriter{
		outputDir: outputDir,
		horizon:   horizon,
		logger:    log.WithField("module", "report"),
	}
}

// StockFileName returns `{code}-{name}.md`
func StockFileName(code, name string) string {
	return fmt.Sprintf("%s-%s.md", code, sanitize(name))
}

// WriteStock implements contracts.StatsSink
func (w *MarkdownWriter) WriteStock(ctx context.Context, r *contracts.StockReport) error {
	path := filepath.Join(w.outputDir, StockFileName(r.Code, r.Name))
	if err := w.write(path, RenderStock(r, w.horizon)); err != nil {
		return fmt.Errorf("write stock report %s: %w", r.Code, err)
	}

	w.logger.WithFields(map[string]interface{}{
		"code": r.Code,
		"path": path,
	}).Debug("Stock report written")
	return nil
}

// WriteSummary implements contracts.SummarySink
func (w *MarkdownWriter) WriteSummary(ctx context.Context, s *contracts.MarketSummary) error {
	path := filepath.Join(w.outputDir, SummaryFileName)
	if err := w.write(path, RenderSummary(s)); err != nil {
		return fmt.Errorf("write summary report: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"run_id": s.RunID,
		"path":   path,
	}).Info("Summary report written")
	return nil
}

// write replaces path via a temp file so readers never see a partial report
func (w *MarkdownWriter) write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RenderStock renders one stock report
func RenderStock(r *contracts.StockReport, horizon int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s-%s 技术指标分析报告\n\n", r.Code, r.Name)
	b.WriteString("## 技术指标统计\n\n")

	if r.Skipped {
		fmt.Fprintf(&b, "> ⚠️ %s\n", r.Warning)
		return b.String()
	}

	fmt.Fprintf(&b, "| 指标名称 | 出现次数 | 胜率 | %s |\n", returnLabel(horizon))
	b.WriteString("|----------|----------|------|-------------|\n")

	var failed []contracts.SignalStats
	for _, s := range r.Stats {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", s.Name, s.Count, pct(s.WinRate, s.Count), pct(s.AvgReturn, s.Count))
		if s.Failed() {
			failed = append(failed, s)
		}
	}

	if len(failed) > 0 || r.Warning != "" {
		b.WriteString("\n")
	}
	for _, s := range failed {
		fmt.Fprintf(&b, "> ❌ %s: %s\n", s.Name, s.Error)
	}
	if r.Warning != "" {
		fmt.Fprintf(&b, "> ⚠️ %s\n", r.Warning)
	}

	return b.String()
}

// RenderSummary renders the market summary
func RenderSummary(s *contracts.MarketSummary) string {
	var b strings.Builder

	b.WriteString("# 全市场技术指标汇总分析\n\n")
	fmt.Fprintf(&b, "| 指标名称 | 总出现次数 | 胜率 | %s |\n", returnLabel(s.Horizon))
	b.WriteString("|----------|------------|------|-------------|\n")

	for _, e := range s.Entries {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", e.Name, e.TotalCount, pct(e.WinRate, e.TotalCount), pct(e.AvgReturn, e.TotalCount))
	}

	return b.String()
}

func returnLabel(horizon int) string {
	if horizon < 1 {
		horizon = 5
	}
	return fmt.Sprintf("平均%d日收益", horizon)
}

// pct: 0건이면 N/A
func pct(v float64, count int) string {
	if count == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "\x00", "").Replace(name)
}
