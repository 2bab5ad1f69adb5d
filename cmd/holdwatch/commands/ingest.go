package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/holdwatch/backend/internal/adapter"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/ingest"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

var (
	ingestSource   string
	ingestInvestor string
	ingestPeriod   string
	ingestFiled    string
	ingestDryRun   bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "공시 수집 및 스냅샷 저장",
	Long: `공시 원문을 파싱해 투자자별 스냅샷으로 저장합니다.

Subcommands:
  file   - 로컬 파일 적재 (CSV / 13F XML / N-PORT XML / Form 4 XML)
  fetch  - watchlist 투자자의 최신 공시 다운로드 후 적재

Example:
  go run ./cmd/holdwatch ingest file ./ARKK.csv --source etf --investor ark-arkk
  go run ./cmd/holdwatch ingest file ./infotable.xml --source 13f --investor berkshire --period 2024-03-31 --filed 2024-05-15
  go run ./cmd/holdwatch ingest fetch --source 13f`,
}

var (
	ingestFileCmd = &cobra.Command{
		Use:   "file [path]",
		Short: "로컬 공시 파일 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestFile,
	}

	ingestFetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "최신 공시 다운로드 후 적재",
		RunE:  runIngestFetch,
	}
)

func init() {
	ingestFileCmd.Flags().StringVar(&ingestSource, "source", "", "source type (etf, 13f, nport, form4)")
	ingestFileCmd.Flags().StringVar(&ingestInvestor, "investor", "", "investor id")
	ingestFileCmd.Flags().StringVar(&ingestPeriod, "period", "", "period date YYYY-MM-DD (filings without one in the document)")
	ingestFileCmd.Flags().StringVar(&ingestFiled, "filed", "", "filed date YYYY-MM-DD (default: period)")
	ingestFileCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse only, do not touch the database")
	_ = ingestFileCmd.MarkFlagRequired("source")
	_ = ingestFileCmd.MarkFlagRequired("investor")

	ingestFetchCmd.Flags().StringVar(&ingestSource, "source", "", "limit to one source type")
	ingestFetchCmd.Flags().StringVar(&ingestInvestor, "investor", "", "limit to one investor id")

	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestFetchCmd)
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	source, err := contracts.ParseSourceType(ingestSource)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	raw := adapter.RawSource{
		SourceType: source,
		InvestorID: ingestInvestor,
		Name:       args[0],
		Body:       body,
	}
	if raw.PeriodDate, err = parseDateFlag("period", ingestPeriod); err != nil {
		return err
	}
	if raw.FiledDate, err = parseDateFlag("filed", ingestFiled); err != nil {
		return err
	}
	if raw.FiledDate.IsZero() {
		raw.FiledDate = raw.PeriodDate
	}

	PrintHeader("Ingest File",
		[2]string{"File", args[0]},
		[2]string{"Source", string(source)},
		[2]string{"Investor", ingestInvestor},
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	var report *ingest.Report
	if ingestDryRun {
		report, err = dryRunIngester().Ingest(ctx, raw)
	} else {
		a, aerr := newApp()
		if aerr != nil {
			return aerr
		}
		defer a.Close()
		report, err = a.ingester.Ingest(ctx, raw)
	}

	if report != nil {
		printReports([]*ingest.Report{report})
		printRejected(report)
	}
	if err != nil {
		return fmt.Errorf("❌ ingest failed: %w", err)
	}

	if ingestDryRun {
		PrintInfo("Dry run: nothing was written")
	}
	return nil
}

// dryRunIngester parses into an in-memory store; the watchlist only supplies CUSIP mappings
func dryRunIngester() *ingest.Ingester {
	path := watchlistPath
	if path == "" {
		path = "config/watchlist.yaml"
	}

	resolver := adapter.MapResolver{}
	if wl, _, err := watchlist.Load(path); err == nil {
		resolver = wl.Resolver()
	} else {
		PrintWarning(fmt.Sprintf("watchlist not loaded, CUSIPs stay unresolved: %v", err))
	}

	return ingest.NewIngester(snapshot.NewMemoryStore(), nil, nil, resolver, ingest.Config{
		Workers:            1,
		MalformedThreshold: 0.5,
	}, logger.Nop())
}

func runIngestFetch(cmd *cobra.Command, args []string) error {
	var source contracts.SourceType
	if ingestSource != "" {
		s, err := contracts.ParseSourceType(ingestSource)
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

	investors := a.watchlist.Active(source)
	if ingestInvestor != "" {
		var filtered []watchlist.Investor
		for _, inv := range investors {
			if inv.ID == ingestInvestor {
				filtered = append(filtered, inv)
			}
		}
		investors = filtered
	}
	if len(investors) == 0 {
		PrintWarning("No matching investors in watchlist")
		return nil
	}

	PrintHeader("Ingest Fetch",
		[2]string{"Source", orAll(string(source))},
		[2]string{"Investors", strconv.Itoa(len(investors))},
	)

	reports, err := a.ingester.IngestAll(cmd.Context(), investors)
	printReports(reports)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Error != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", r.InvestorID, r.Error))
		}
	}
	if failed == len(reports) {
		return fmt.Errorf("all %d investors failed", failed)
	}
	PrintSuccess(fmt.Sprintf("%d/%d investors ingested", len(reports)-failed, len(reports)))
	return nil
}

var reportColumns = []string{"Investor", "Source", "Rows", "Failed", "Skipped", "Committed", "Existing", "Status"}
var reportWidths = []int{16, 10, 6, 6, 7, 28, 8, 6}

func printReports(reports []*ingest.Report) {
	fmt.Println()
	PrintTableHeader(reportColumns, reportWidths)
	for _, r := range reports {
		committed := "-"
		if n := len(r.Committed); n > 0 {
			committed = r.Committed[n-1].String()
			if n > 1 {
				committed = fmt.Sprintf("%s (+%d)", committed, n-1)
			}
		}
		status := "OK"
		if r.Error != nil {
			status = "FAIL"
		}
		PrintTableRow([]string{
			r.InvestorID,
			string(r.SourceType),
			strconv.Itoa(r.TotalRows),
			strconv.Itoa(r.RowsFailed()),
			strconv.Itoa(r.Skipped),
			committed,
			strconv.Itoa(len(r.Existing)),
			status,
		}, reportWidths)
	}
}

// printRejected lists at most 20 malformed rows
func printRejected(r *ingest.Report) {
	if len(r.Rejected) == 0 {
		return
	}
	fmt.Println()
	PrintWarning(fmt.Sprintf("%d malformed rows", len(r.Rejected)))
	for i, rej := range r.Rejected {
		if i == 20 {
			fmt.Printf("   ... %d more\n", len(r.Rejected)-20)
			break
		}
		fmt.Printf("   %s\n", rej.Error())
	}
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func orAll(s string) string {
	if s == "" {
		return "ALL"
	}
	return s
}
