package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/database"
)

var testDBMigrate bool

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트 및 스키마 적용",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

이 명령어는:
- config에서 DATABASE_URL 로드
- Ping / Health Check 실행
- --migrate 지정 시 holdings 스키마 적용 (idempotent)

Example:
  go run ./cmd/holdwatch test-db
  go run ./cmd/holdwatch test-db --migrate`,
	RunE: runTestDB,
}

func init() {
	testDBCmd.Flags().BoolVar(&testDBMigrate, "migrate", false, "apply the holdings schema")
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	PrintHeader("Database Connection Test")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	PrintKeyValue("Database URL", maskPassword(cfg.Database.URL), 14)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	PrintSuccess("Database connection established")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	PrintSuccess("Health check passed")
	PrintKeyValue("Response Time", status.ResponseTime.String(), 14)
	PrintKeyValue("Max Conns", fmt.Sprintf("%d", status.Stats.MaxConns), 14)
	PrintKeyValue("Total Conns", fmt.Sprintf("%d", status.Stats.TotalConns), 14)
	PrintKeyValue("Idle Conns", fmt.Sprintf("%d", status.Stats.IdleConns), 14)

	if testDBMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("❌ Migration failed: %w", err)
		}
		PrintSuccess("holdings schema applied")
	}

	fmt.Println()
	PrintSuccess("All checks passed!")
	return nil
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	pw, ok := u.User.Password()
	if !ok || pw == "" {
		return raw
	}
	return strings.Replace(raw, ":"+pw+"@", ":***@", 1)
}
