package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted section header
func PrintHeader(title string, fields ...[2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	if len(fields) > 0 {
		PrintSeparator()
		for _, f := range fields {
			fmt.Printf("  %-10s: %s\n", f[0], f[1])
		}
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

var changeColumns = []string{"#", "Ticker", "Type", "Shares Δ", "Prev", "Curr", "Weight Δ", "Price Range", "Est. Value", "Dates"}
var changeWidths = []int{3, 8, 9, 13, 13, 13, 9, 17, 14, 21}

// PrintRanked prints one side of a ranked change list
func PrintRanked(title string, list []contracts.RankedChange) {
	fmt.Printf("\n%s (%d)\n", title, len(list))
	if len(list) == 0 {
		fmt.Println("   (none)")
		return
	}
	PrintTableHeader(changeColumns, changeWidths)
	for _, rc := range list {
		PrintTableRow(changeRow(rc), changeWidths)
	}
}

func changeRow(rc contracts.RankedChange) []string {
	c := rc.Change
	return []string{
		strconv.Itoa(rc.Rank),
		c.Ticker,
		string(c.ChangeType),
		formatSigned(c.SharesDelta),
		formatShares(c.PreviousShares),
		formatShares(c.CurrentShares),
		formatWeight(c.WeightDelta),
		formatPriceRange(c.PriceRange),
		formatMoney(c.EstimatedValue),
		c.DateRange.String(),
	}
}

// formatShares renders 1234567 as "1,234,567"
func formatShares(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatSigned(n int64) string {
	if n > 0 {
		return "+" + formatShares(n)
	}
	return formatShares(n)
}

func formatWeight(w *float64) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *w)
}

func formatPriceRange(p *contracts.PriceRange) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f~%.2f", p.Low, p.High)
}

func formatMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	switch a := *v; {
	case a >= 1e9:
		return fmt.Sprintf("$%.2fB", a/1e9)
	case a >= 1e6:
		return fmt.Sprintf("$%.2fM", a/1e6)
	case a >= 1e3:
		return fmt.Sprintf("$%.1fK", a/1e3)
	default:
		return fmt.Sprintf("$%.0f", a)
	}
}
