package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/contracts"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "시그널 분석 실행",
	Long: `설정된 종목 전체에 대해 시그널 탐지 + 백테스트를 실행합니다.

이 명령어는:
- 종목별 일봉 로드 (CSV 또는 Postgres)
- 6개 시그널 탐지
- 다음 날 시가 진입 / N일 후 종가 청산 통계
- 종목별 Markdown 리포트 + 전체 시장 요약 출력

Example:
  go run ./cmd/signals analyze
  go run ./cmd/signals analyze --codes 000001,600519 --workers 8
  go run ./cmd/signals analyze --signals macd_golden_cross,morning_star --no-report`,
	RunE: runAnalyze,
}

var (
	analyzeCodes    []string
	analyzeSignals  []string
	analyzeWorkers  int
	analyzeNoReport bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Flags
	analyzeCmd.Flags().StringSliceVar(&analyzeCodes, "codes", nil, "분석할 종목 코드 (기본: YAML stock_codes, 비어 있으면 전체)")
	analyzeCmd.Flags().StringSliceVar(&analyzeSignals, "signals", nil, "시그널 코드 (기본: YAML signals)")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "워커 수 (기본: ANALYSIS_WORKERS)")
	analyzeCmd.Flags().BoolVar(&analyzeNoReport, "no-report", false, "Markdown 리포트 생략")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDeps(ctx, depsOptions{Workers: analyzeWorkers, WriteReports: !analyzeNoReport})
	if err != nil {
		return err
	}
	defer d.Close()

	PrintJobHeader(JobMetadata{
		JobType:   "Signal Analysis",
		Tag:       "Analyze",
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Symbols:   strings.Join(analyzeCodes, ","),
	})

	result, err := d.service.Run(ctx, analyzer.RunRequest{
		Codes:   analyzeCodes,
		Signals: analyzeSignals,
	}, func(ev analyzer.ProgressEvent) {
		msg := fmt.Sprintf("%s %s", ev.Code, ev.Name)
		switch {
		case ev.Skipped:
			msg += " (skipped: " + ev.Warning + ")"
		case ev.Cached:
			msg += " (cached)"
		case ev.Warning != "":
			msg += " ⚠️ " + ev.Warning
		}
		PrintProgress("Analyze", msg, ev.Done, ev.Total)
	})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSummaryTable(result.Summary)

	fmt.Println()
	PrintKeyValue("Run ID", result.Run.RunID, 12)
	PrintKeyValue("Instruments", fmt.Sprintf("%d analyzed, %d skipped", result.Run.Instruments, result.Run.Skipped), 12)
	if !analyzeNoReport {
		cfg, err := d.service.LoadConfig()
		if err == nil {
			PrintKeyValue("Reports", cfg.OutputDir, 12)
		}
	}
	PrintCompletion(result.Run.RunID, result.Duration.Seconds())

	return nil
}

// PrintSummaryTable prints the market summary in catalogue order
func PrintSummaryTable(s *contracts.MarketSummary) {
	if s == nil {
		return
	}

	fmt.Println()
	widths := []int{22, 10, 10, 12, 8}
	PrintTableHeader([]string{"Signal", "Count", "Win Rate", fmt.Sprintf("Avg %dD", s.Horizon), "Stocks"}, widths)
	for _, e := range s.Entries {
		winRate, avg := "N/A", "N/A"
		if e.TotalCount > 0 {
			winRate = fmt.Sprintf("%.2f%%", e.WinRate*100)
			avg = fmt.Sprintf("%.2f%%", e.AvgReturn*100)
		}
		PrintTableRow([]string{e.Name, fmt.Sprintf("%d", e.TotalCount), winRate, avg, fmt.Sprintf("%d", e.Instruments)}, widths)
	}
}
