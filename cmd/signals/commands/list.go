package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s0_data"
	"github.com/wonny/aegis-signals/internal/s0_data/quality"
	"github.com/wonny/aegis-signals/internal/s2_signals"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "시그널 / 종목 목록 조회",
	Long: `시그널 카탈로그 또는 분석 가능한 종목 목록을 표시합니다.

Subcommands:
  signals - 시그널 카탈로그 (리포트 순서)
  stocks  - 데이터 소스의 종목 코드 (--quality 로 품질 점검)

Example:
  go run ./cmd/signals list signals
  go run ./cmd/signals list stocks --quality`,
}

var (
	listSignalsCmd = &cobra.Command{
		Use:   "signals",
		Short: "시그널 카탈로그",
		RunE:  listSignals,
	}

	listStocksCmd = &cobra.Command{
		Use:   "stocks",
		Short: "종목 코드 목록",
		RunE:  listStocks,
	}

	listQuality bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listSignalsCmd)
	listCmd.AddCommand(listStocksCmd)

	listStocksCmd.Flags().BoolVar(&listQuality, "quality", false, "종목별 데이터 품질 점검")
}

func listSignals(cmd *cobra.Command, args []string) error {
	widths := []int{22, 10, 8, 26}
	PrintTableHeader([]string{"Code", "Name", "Lookback", "Requires"}, widths)
	for _, sig := range s2_signals.DefaultCatalogue() {
		lookback := fmt.Sprintf("%d", sig.Lookback)
		if sig.Lookback == 0 {
			lookback = "window"
		}
		PrintTableRow([]string{sig.Code, sig.Name, lookback, strings.Join(sig.Requires.Names(), ",")}, widths)
	}
	return nil
}

func listStocks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeps(ctx, depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg, err := d.service.LoadConfig()
	if err != nil {
		return err
	}

	source := d.source
	if source == nil {
		source = s0_data.NewCSVSource(cfg.DataDir)
	}

	lister, ok := source.(contracts.CodeLister)
	if !ok {
		return fmt.Errorf("bar source cannot list codes")
	}
	codes, err := lister.ListCodes(ctx)
	if err != nil {
		return fmt.Errorf("list codes: %w", err)
	}
	if len(codes) == 0 {
		PrintWarning("No instruments found")
		return nil
	}

	if !listQuality {
		PrintList(codes)
		PrintInfo(fmt.Sprintf("%d instruments", len(codes)))
		return nil
	}

	gate := quality.NewQualityGate(cfg.QualityConfig())
	widths := []int{10, 14, 6, 8, 40}
	PrintTableHeader([]string{"Code", "Name", "Bars", "Score", "Warnings"}, widths)
	for _, code := range codes {
		s, err := source.LoadSeries(ctx, code)
		if err != nil {
			PrintTableRow([]string{code, "", "-", "-", err.Error()}, widths)
			continue
		}
		snap := gate.Check(s)
		PrintTableRow([]string{
			code,
			s.Name,
			fmt.Sprintf("%d", snap.Bars),
			fmt.Sprintf("%.3f", snap.QualityScore),
			snap.Warning(),
		}, widths)
	}

	return nil
}
