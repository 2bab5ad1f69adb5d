package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	watchlistPath string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "holdwatch",
	Short: "Holdwatch - 보유종목 공시 변동 추적기",
	Long: `Holdwatch CLI

ETF 일별 보유종목, 13F, N-PORT, Form 4 공시를 수집해
투자자별 스냅샷으로 저장하고 직전 스냅샷과 비교해 매수/매도 변동을 산출합니다.

Usage:
  go run ./cmd/holdwatch [command]

Examples:
  go run ./cmd/holdwatch test-db --migrate
  go run ./cmd/holdwatch ingest file ./ARKK.csv --source etf --investor ark-arkk
  go run ./cmd/holdwatch ingest fetch --source 13f
  go run ./cmd/holdwatch diff --investor berkshire --source 13f
  go run ./cmd/holdwatch view --investor ark-arkk
  go run ./cmd/holdwatch status
  go run ./cmd/holdwatch scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&watchlistPath, "watchlist", "", "watchlist YAML (default WATCHLIST_PATH or config/watchlist.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
