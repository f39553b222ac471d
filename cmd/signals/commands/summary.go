package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signals/internal/s3_backtest"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary [code]",
	Short: "최근 분석 결과 조회",
	Long: `저장된 최근 분석 결과를 표시합니다 (Redis 캐시 또는 DB).

인자 없이 실행하면 전체 시장 요약, 종목 코드를 주면 해당 종목 통계.

Example:
  go run ./cmd/signals summary
  go run ./cmd/signals summary 600519`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeps(ctx, depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	if len(args) == 1 {
		r, err := d.service.StockStats(ctx, args[0])
		if err != nil {
			PrintWarning(fmt.Sprintf("No stats for %s (ANALYSIS_PERSIST=true 필요)", args[0]))
			return err
		}

		PrintKeyValue("Stock", fmt.Sprintf("%s %s", r.Code, r.Name), 8)
		PrintKeyValue("Bars", fmt.Sprintf("%d", r.Bars), 8)
		fmt.Println()

		widths := []int{22, 8, 10, 12}
		PrintTableHeader([]string{"Signal", "Count", "Win Rate", "Avg Return"}, widths)
		for _, s := range r.Stats {
			winRate, avg := "N/A", "N/A"
			if s.Count > 0 {
				winRate = fmt.Sprintf("%.2f%%", s.WinRate*100)
				avg = fmt.Sprintf("%.2f%%", s.AvgReturn*100)
			}
			if s.Failed() {
				winRate, avg = "error", s.Error
			}
			PrintTableRow([]string{s.Name, fmt.Sprintf("%d", s.Count), winRate, avg}, widths)
		}
		return nil
	}

	summary, err := d.service.LatestSummary(ctx)
	if errors.Is(err, s3_backtest.ErrNoRuns) {
		PrintWarning("No completed analysis run (REDIS_ENABLED 또는 ANALYSIS_PERSIST 필요)")
		return nil
	}
	if err != nil {
		return err
	}

	PrintKeyValue("Run ID", summary.RunID, 12)
	PrintKeyValue("Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05"), 12)
	PrintKeyValue("Instruments", fmt.Sprintf("%d", summary.Instruments), 12)
	PrintSummaryTable(summary)

	return nil
}
