package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	ex "mc.store/data/extensions"
	m "mc.store/data/models"
	q "mc.store/data/queries"
)

func (pg *Postgres) InsertProcessedMarketDatum(ctx context.Context, d *m.ProcessedMarketDatum) error {
	if err := d.Normalize(); err != nil {
		return err
	}

	sql := q.Get(q.QueryHelper.Insert.ProcessedMarketDatum)
	args := namedArgs(m.ProcessedMarketDataColumns, d.CopyRow())

	if err := pg.db.QueryRow(ctx, sql, args).Scan(&d.Id); err != nil {
		return fmt.Errorf("error inserting processed market datum %s: %w", d.Key(), classify(err))
	}

	return nil
}

// StoreProcessedMarketData bulk writes feature rows keyed by (ticker, date).
func (pg *Postgres) StoreProcessedMarketData(ctx context.Context, data []*m.ProcessedMarketDatum, policy m.ConflictPolicy) (int64, error) {
	for _, d := range data {
		if err := d.Normalize(); err != nil {
			return 0, err
		}
	}

	unique := ex.UniqueBy(data, func(d *m.ProcessedMarketDatum) string { return d.Key() })
	rows := make([][]any, len(unique))
	for i, d := range unique {
		rows[i] = d.CopyRow()
	}

	return pg.bulkWrite(ctx, bulkWrite{
		table:   "processed_market_data",
		columns: m.ProcessedMarketDataColumns,
		key:     m.ProcessedMarketDataKey,
		rows:    rows,
		policy:  policy,
	})
}

// GetProcessedMarketData returns feature rows for ticker with from <= date <= to, oldest first.
func (pg *Postgres) GetProcessedMarketData(ctx context.Context, ticker string, from, to time.Time) ([]*m.ProcessedMarketDatum, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	args := pgx.NamedArgs{
		"ticker": ticker,
		"from":   ex.FmtShort(from),
		"to":     ex.FmtShort(to),
	}

	res, err := Query[m.ProcessedMarketDatum](ctx, pg, q.Get(q.QueryHelper.Select.ProcessedMarketData), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query processed market data by ticker (%s): %w", ticker, err)
	}
	return res, nil
}

// GetLatestProcessedMarketDatum returns the newest feature row, or nil when none exist.
func (pg *Postgres) GetLatestProcessedMarketDatum(ctx context.Context, ticker string) (*m.ProcessedMarketDatum, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	res, err := QuerySingle[m.ProcessedMarketDatum](ctx, pg, q.Get(q.QueryHelper.Select.LatestProcessedMarketDatum), pgx.NamedArgs{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("unable to get latest processed market datum for %s: %w", ticker, err)
	}
	return res, nil
}

// GetDailyReturns returns the (date, close, return) series a simulation driver samples from.
func (pg *Postgres) GetDailyReturns(ctx context.Context, ticker string) ([]*m.DailyReturn, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	res, err := Query[m.DailyReturn](ctx, pg, q.Get(q.QueryHelper.Select.DailyReturns), pgx.NamedArgs{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("unable to get daily returns for %s: %w", ticker, err)
	}
	return res, nil
}

// DeleteProcessedMarketData clears a ticker's feature rows ahead of a full recompute.
func (pg *Postgres) DeleteProcessedMarketData(ctx context.Context, ticker string) (int64, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return 0, err
	}

	tag, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.ProcessedMarketDataByTicker), pgx.NamedArgs{"ticker": ticker})
	if err != nil {
		return 0, fmt.Errorf("error deleting processed market data for %s: %w", ticker, err)
	}

	return tag.RowsAffected(), nil
}
