package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	m "mc.store/data/models"
	q "mc.store/data/queries"
)

// InsertSimulationResult inserts one result row. A run_id with no simulation_runs
// row fails with ErrForeignKeyViolation.
func (pg *Postgres) InsertSimulationResult(ctx context.Context, r *m.SimulationResult) error {
	if err := r.Normalize(); err != nil {
		return err
	}

	args := namedArgs(m.SimulationResultColumns, r.CopyRow())
	if err := pg.db.QueryRow(ctx, q.Get(q.QueryHelper.Insert.SimulationResult), args).Scan(&r.Id); err != nil {
		return fmt.Errorf("error inserting simulation result for run %d: %w", r.RunId, classify(err))
	}

	return nil
}

// InsertSimulationResults copies result rows for runs that already exist.
func (pg *Postgres) InsertSimulationResults(ctx context.Context, results []*m.SimulationResult) (int64, error) {
	var n int64
	err := pg.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = pg.InsertSimulationResultsTx(ctx, results, tx)
		return err
	})
	return n, err
}

func (pg *Postgres) InsertSimulationResultsTx(ctx context.Context, results []*m.SimulationResult, tx pgx.Tx) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		if err := r.Normalize(); err != nil {
			return 0, err
		}
		rows[i] = r.CopyRow()
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"simulation_results"}, m.SimulationResultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("error inserting simulation results: %w", classify(err))
	}
	return n, nil
}

func (pg *Postgres) InsertPortfolioResultsTx(ctx context.Context, results []*m.PortfolioResult, tx pgx.Tx) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		if err := r.Normalize(); err != nil {
			return 0, err
		}
		rows[i] = r.CopyRow()
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"portfolio_results"}, m.PortfolioResultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("error inserting portfolio results: %w", classify(err))
	}
	return n, nil
}

func (pg *Postgres) InsertSimulationSummaryTx(ctx context.Context, summary []*m.SimulationSummary, tx pgx.Tx) (int64, error) {
	if len(summary) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(summary))
	for i, s := range summary {
		if err := s.Normalize(); err != nil {
			return 0, err
		}
		rows[i] = s.CopyRow()
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"simulation_summary"}, m.SimulationSummaryColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("error inserting simulation summary: %w", classify(err))
	}
	return n, nil
}

func (pg *Postgres) GetSimulationResultsByRun(ctx context.Context, runId int32) ([]*m.SimulationResult, error) {
	res, err := Query[m.SimulationResult](ctx, pg, q.Get(q.QueryHelper.Select.SimulationResultsByRun), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return nil, fmt.Errorf("unable to get simulation results for run %d: %w", runId, err)
	}
	return res, nil
}

func (pg *Postgres) CountSimulationResultsByRun(ctx context.Context, runId int32) (int64, error) {
	counts, err := pg.GetRunCounts(ctx, runId)
	if err != nil {
		return 0, err
	}
	return counts.Results, nil
}

func (pg *Postgres) GetPortfolioResultsByRun(ctx context.Context, runId int32) ([]*m.PortfolioResult, error) {
	res, err := Query[m.PortfolioResult](ctx, pg, q.Get(q.QueryHelper.Select.PortfolioResultsByRun), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return nil, fmt.Errorf("unable to get portfolio results for run %d: %w", runId, err)
	}
	return res, nil
}

func (pg *Postgres) CountPortfolioResultsByRun(ctx context.Context, runId int32) (int64, error) {
	counts, err := pg.GetRunCounts(ctx, runId)
	if err != nil {
		return 0, err
	}
	return counts.PortfolioResults, nil
}

func (pg *Postgres) GetSimulationSummaryByRun(ctx context.Context, runId int32) ([]*m.SimulationSummary, error) {
	res, err := Query[m.SimulationSummary](ctx, pg, q.Get(q.QueryHelper.Select.SimulationSummaryByRun), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return nil, fmt.Errorf("unable to get simulation summary for run %d: %w", runId, err)
	}
	return res, nil
}
