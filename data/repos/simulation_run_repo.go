package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	m "mc.store/data/models"
	q "mc.store/data/queries"
)

func (pg *Postgres) InsertSimulationRunTx(ctx context.Context, run *m.SimulationRun, tx pgx.Tx) error {
	if err := run.Validate(); err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"portfolio_type":     string(run.PortfolioType),
		"time_horizon_years": run.TimeHorizonYears,
		"num_simulations":    run.NumSimulations,
	}

	if err := tx.QueryRow(ctx, q.Get(q.QueryHelper.Insert.SimulationRun), args).Scan(&run.RunId, &run.CreatedAt); err != nil {
		return fmt.Errorf("error inserting simulation run: %w", classify(err))
	}

	return nil
}

// InsertSimulationRun inserts the run row on its own, outside any graph write.
func (pg *Postgres) InsertSimulationRun(ctx context.Context, run *m.SimulationRun) error {
	return pg.WithTransaction(ctx, func(tx pgx.Tx) error {
		return pg.InsertSimulationRunTx(ctx, run, tx)
	})
}

// InsertSimulationRunGraph writes a run and all of its children in one
// transaction. A failure anywhere leaves no rows behind, so a retried run cannot
// duplicate results.
func (pg *Postgres) InsertSimulationRunGraph(ctx context.Context, g *m.SimulationRunGraph) error {
	if err := g.Normalize(); err != nil {
		return err
	}

	return pg.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := pg.InsertSimulationRunTx(ctx, &g.Run, tx); err != nil {
			return err
		}

		g.SetRunId(g.Run.RunId)

		if _, err := pg.InsertSimulationResultsTx(ctx, g.Results, tx); err != nil {
			return err
		}
		if _, err := pg.InsertPortfolioResultsTx(ctx, g.PortfolioResults, tx); err != nil {
			return err
		}
		if _, err := pg.InsertSimulationSummaryTx(ctx, g.Summary, tx); err != nil {
			return err
		}

		return nil
	})
}

// GetSimulationRun returns nil, nil when the run does not exist.
func (pg *Postgres) GetSimulationRun(ctx context.Context, runId int32) (*m.SimulationRun, error) {
	res, err := QuerySingle[m.SimulationRun](ctx, pg, q.Get(q.QueryHelper.Select.SimulationRunById), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return nil, fmt.Errorf("unable to get simulation run %d: %w", runId, err)
	}
	return res, nil
}

// ListSimulationRuns returns runs newest first.
func (pg *Postgres) ListSimulationRuns(ctx context.Context, filter m.SimulationRunFilter) ([]*m.SimulationRun, error) {
	args := pgx.NamedArgs{
		"portfolio_type": nil,
		"since":          nil,
		"limit":          nil,
	}
	if filter.PortfolioType != "" {
		if !filter.PortfolioType.Valid() {
			return nil, fmt.Errorf("%w: %q", m.ErrUnknownPortfolioType, string(filter.PortfolioType))
		}
		args["portfolio_type"] = string(filter.PortfolioType)
	}
	if !filter.Since.IsZero() {
		args["since"] = filter.Since.UTC()
	}
	if filter.Limit > 0 {
		args["limit"] = filter.Limit
	}

	res, err := Query[m.SimulationRun](ctx, pg, q.Get(q.QueryHelper.Select.SimulationRuns), args)
	if err != nil {
		return nil, fmt.Errorf("unable to list simulation runs: %w", err)
	}
	return res, nil
}

// DeleteSimulationRun removes the run. Results, portfolio results and summary
// rows go with it through the cascading foreign keys.
func (pg *Postgres) DeleteSimulationRun(ctx context.Context, runId int32) error {
	tag, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.SimulationRun), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return fmt.Errorf("error deleting simulation run %d: %w", runId, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("simulation run %d: %w", runId, ErrNotFound)
	}

	return nil
}

func (pg *Postgres) GetRunCounts(ctx context.Context, runId int32) (*m.RunCounts, error) {
	res, err := QuerySingle[m.RunCounts](ctx, pg, q.Get(q.QueryHelper.Select.RunCounts), pgx.NamedArgs{"run_id": runId})
	if err != nil {
		return nil, fmt.Errorf("unable to count rows for simulation run %d: %w", runId, err)
	}
	if res == nil {
		return &m.RunCounts{}, nil
	}
	return res, nil
}
