package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "투자자별 스냅샷 최신성 조회",
	Long: `watchlist 투자자별 최신 스냅샷과 최신성(staleness)을 표시합니다.

소스별 기준:
- DAILY_ETF: 4일
- SEC_13F:   137일 (분기 + 45일 제출기한)
- N_PORT:    152일 (분기 + 60일 제출기한)
- FORM_4:    기준 없음 (거래 발생 시에만 제출)

Example:
  go run ./cmd/holdwatch status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusColumns = []string{"Investor", "Source", "Period", "Filed", "Age", "Holdings", "Status"}
var statusWidths = []int{24, 10, 10, 10, 6, 8, 10}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	now := time.Now()
	investors := a.watchlist.Active("")

	cache := a.redis.Addr()
	if err := a.redis.Ping(ctx); err != nil {
		cache = "unreachable (" + cache + ")"
	}

	PrintHeader("Snapshot Status",
		[2]string{"Watchlist", fmt.Sprintf("%d investors", len(investors))},
		[2]string{"As of", now.Format("2006-01-02")},
		[2]string{"Cache", cache},
	)
	PrintTableHeader(statusColumns, statusWidths)

	stale := 0
	for _, inv := range investors {
		ids, err := snapshot.Series(ctx, a.store, inv.ID, inv.SourceType)
		if err != nil {
			return fmt.Errorf("list series %s: %w", inv.ID, err)
		}
		if len(ids) == 0 {
			PrintTableRow([]string{inv.ID, string(inv.SourceType), "-", "-", "-", "-", "MISSING"}, statusWidths)
			stale++
			continue
		}

		for _, id := range ids {
			_, curr, err := a.store.GetAdjacentSnapshots(ctx, id, inv.SourceType, now)
			if errors.Is(err, contracts.ErrSnapshotNotFound) {
				PrintTableRow([]string{id, string(inv.SourceType), "-", "-", "-", "-", "MISSING"}, statusWidths)
				stale++
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", id, err)
			}

			f := snapshot.FreshnessOf(curr, now)
			status := "OK"
			switch {
			case f.Stale:
				status = "STALE"
				stale++
			case f.LateFiled:
				status = "LATE"
			}
			PrintTableRow([]string{
				id,
				string(inv.SourceType),
				f.Period.Format("2006-01-02"),
				f.Filed.Format("2006-01-02"),
				fmt.Sprintf("%dd", int(f.Age.Hours()/24)),
				fmt.Sprintf("%d", len(curr.Disclosures)),
				status,
			}, statusWidths)
		}
	}

	fmt.Println()
	if stale > 0 {
		PrintWarning(fmt.Sprintf("%d series stale or missing", stale))
	} else {
		PrintSuccess("All series are fresh")
	}
	return nil
}
