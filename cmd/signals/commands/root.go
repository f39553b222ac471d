package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signals",
	Short: "K线 시그널 탐지 + 5일 백테스트 통계",
	Long: `Aegis Signals Unified CLI

일봉 OHLCV 시계열에서 6개 캔들/지표 시그널을 탐지하고
시그널 다음 날 시가 진입, 5일 후 종가 청산 기준으로 승률/평균 수익률을 집계합니다.

Usage:
  go run ./cmd/signals [command]

Examples:
  go run ./cmd/signals analyze
  go run ./cmd/signals analyze --codes 000001,600519
  go run ./cmd/signals list signals
  go run ./cmd/signals api
  go run ./cmd/signals scheduler start --run-now`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "analysis YAML (default is $ANALYSIS_CONFIG or config/analysis.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
