package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var ddl string

// Tables in creation order. Children come after simulation_runs.
var Tables = []string{
	"raw_market_data",
	"processed_market_data",
	"simulation_runs",
	"simulation_results",
	"portfolio_results",
	"simulation_summary",
}

var Indexes = []string{
	"idx_raw_market_data_ticker_timestamp",
	"idx_processed_market_data_ticker_date",
	"idx_simulation_results_run_id",
	"idx_portfolio_results_run_id",
	"idx_simulation_summary_run_id",
}

type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func DDL() string {
	return ddl
}

// Statements splits the DDL into its individual statements, dropping comment-only lines.
func Statements() []string {
	var (
		res []string
		sb  strings.Builder
	)

	for _, line := range strings.Split(ddl, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		sb.WriteString(line)
		sb.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			res = append(res, strings.TrimSpace(sb.String()))
			sb.Reset()
		}
	}

	return res
}

// Apply creates every table and index that does not exist yet. Running it
// against an up to date database is a no-op.
func Apply(ctx context.Context, exec Execer) error {
	for i, stmt := range Statements() {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema statement %d (%s): %w", i+1, firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt[:i]), "("))
	}
	return stmt
}
