package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/holdwatch/backend/internal/changes"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/scheduler/jobs"
)

var (
	diffInvestor string
	diffSource   string
	diffAsOf     string
	diffWindow   bool
	diffJSON     bool
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "스냅샷 비교 및 매수/매도 변동 랭킹",
	Long: `직전 스냅샷과 현재 스냅샷을 비교해 투자자별 보유 변동을 산출합니다.

처리 순서:
1. 인접 스냅샷 조회 (ETF는 기본적으로 최근 7일 윈도우)
2. 종목별 변동 계산 (NEW / ADDED / REDUCED / SOLD_OUT)
3. 가격 범위 및 추정 금액 부여
4. 집계 후 매수/매도 랭킹, 결과 저장

Example:
  go run ./cmd/holdwatch diff
  go run ./cmd/holdwatch diff --investor berkshire --source 13f
  go run ./cmd/holdwatch diff --investor ark-arkk --as-of 2024-03-08 --json`,
	RunE: runDiff,
}

// viewCmd prints stored views without recomputing
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "저장된 최신 변동 뷰 조회 (재계산 없음)",
	Long: `가장 최근에 계산된 변동 뷰를 조회합니다.
Redis 캐시를 먼저 확인하고, 없으면 DB에 저장된 최신 뷰를 사용합니다.

Example:
  go run ./cmd/holdwatch view --investor berkshire
  go run ./cmd/holdwatch view --source etf --json`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&diffInvestor, "investor", "", "investor id (default: all active)")
	viewCmd.Flags().StringVar(&diffSource, "source", "", "source type (default: all)")
	viewCmd.Flags().BoolVar(&diffJSON, "json", false, "print views as JSON")
	rootCmd.AddCommand(viewCmd)

	diffCmd.Flags().StringVar(&diffInvestor, "investor", "", "investor id (default: all active)")
	diffCmd.Flags().StringVar(&diffSource, "source", "", "source type (default: all)")
	diffCmd.Flags().StringVar(&diffAsOf, "as-of", "", "as-of date YYYY-MM-DD (default: today)")
	diffCmd.Flags().BoolVar(&diffWindow, "window", false, "aggregate the trailing window for every source")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "print views as JSON")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	var source contracts.SourceType
	if diffSource != "" {
		s, err := contracts.ParseSourceType(diffSource)
		if err != nil {
			return err
		}
		source = s
	}

	asOf := time.Now()
	if diffAsOf != "" {
		t, err := parseDateFlag("as-of", diffAsOf)
		if err != nil {
			return err
		}
		asOf = t
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reqs, err := a.runner.Expand(cmd.Context(), jobs.Requests(a.watchlist, source, asOf))
	if err != nil {
		return err
	}
	reqs = filterRequests(reqs, diffInvestor, diffWindow)
	if len(reqs) == 0 {
		PrintWarning("No matching investors in watchlist")
		return nil
	}

	results := a.runner.Run(cmd.Context(), reqs)

	if diffJSON {
		views := make([]*contracts.ChangeView, 0, len(results))
		for _, r := range results {
			if r.View != nil {
				views = append(views, r.View)
			}
		}
		return printJSON(views)
	}

	failed := 0
	for _, r := range results {
		printResult(r)
		if r.Error != nil {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("all %d diffs failed", failed)
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	var source contracts.SourceType
	if diffSource != "" {
		s, err := contracts.ParseSourceType(diffSource)
		if err != nil {
			return err
		}
		source = s
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reqs, err := a.runner.Expand(cmd.Context(), jobs.Requests(a.watchlist, source, time.Now()))
	if err != nil {
		return err
	}
	reqs = filterRequests(reqs, diffInvestor, false)
	var views []*contracts.ChangeView
	for _, req := range reqs {
		view, err := a.runner.Latest(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("load view %s: %w", req.InvestorID, err)
		}
		if view == nil {
			if !diffJSON {
				PrintWarning(fmt.Sprintf("%s/%s: no view computed yet", req.InvestorID, req.Source))
			}
			continue
		}
		if diffJSON {
			views = append(views, view)
			continue
		}
		printResult(changes.RunResult{Request: req, View: view})
	}

	if diffJSON {
		return printJSON(views)
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// filterRequests narrows reqs to one investor (or one of its issuer series) and
// optionally forces windowed aggregation
func filterRequests(reqs []changes.Request, investorID string, windowed bool) []changes.Request {
	out := reqs[:0]
	for _, r := range reqs {
		if investorID != "" && r.InvestorID != investorID && contracts.SeriesOwner(r.InvestorID) != investorID {
			continue
		}
		if windowed {
			r.Windowed = true
		}
		out = append(out, r)
	}
	return out
}

func printResult(r changes.RunResult) {
	req := r.Request
	title := req.InvestorID
	if req.InvestorName != "" {
		title = fmt.Sprintf("%s (%s)", req.InvestorName, req.InvestorID)
	}

	if r.Error != nil {
		PrintHeader(title, [2]string{"Source", string(req.Source)})
		PrintError(r.Error.Error())
		return
	}

	v := r.View
	period := v.CurrentPeriod.Format("2006-01-02")
	if v.Window != nil {
		period = v.Window.String()
	} else if v.PreviousPeriod != nil {
		period = v.PreviousPeriod.Format("2006-01-02") + " → " + period
	}

	PrintHeader(title,
		[2]string{"Source", string(v.SourceType)},
		[2]string{"Period", period},
		[2]string{"Run", v.RunID},
	)
	if v.PreviousPeriod == nil && v.Window == nil {
		PrintInfo("First snapshot: every holding is NEW")
	}
	if r.Freshness.Stale {
		PrintWarning(fmt.Sprintf("Latest snapshot is stale (age %s)", r.Freshness.Age.Round(time.Hour)))
	}
	for _, c := range r.Continuations {
		PrintWarning(fmt.Sprintf("CUSIP %s: %s sold out, %s new (possible corporate action)", c.CUSIP, c.SoldOut, c.New))
	}

	PrintRanked("📈 Buys", v.Buys)
	PrintRanked("📉 Sells", v.Sells)

	if len(r.Narratives) > 0 {
		fmt.Println("\n💬 Narratives")
		for _, n := range r.Narratives {
			fmt.Printf("   %-8s %-9s %s\n", n.Ticker, n.ChangeType, n.Text)
		}
	}
}
