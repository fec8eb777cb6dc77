package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	ex "mc.store/data/extensions"
	m "mc.store/data/models"
	q "mc.store/data/queries"
)

// InsertRawMarketDatum inserts a single quote. A second quote for the same
// (ticker, timestamp) fails with ErrUniqueViolation.
func (pg *Postgres) InsertRawMarketDatum(ctx context.Context, d *m.RawMarketDatum) error {
	if err := d.Normalize(); err != nil {
		return err
	}

	sql := q.Get(q.QueryHelper.Insert.RawMarketDatum)
	args := namedArgs(m.RawMarketDataColumns, d.CopyRow())

	if err := pg.db.QueryRow(ctx, sql, args).Scan(&d.Id, &d.CreatedAt); err != nil {
		return fmt.Errorf("error inserting raw market datum %s: %w", d.Key(), classify(err))
	}

	return nil
}

// StoreRawMarketData bulk writes quotes, resolving existing (ticker, timestamp)
// keys per policy. Duplicates inside data keep their first occurrence. Returns
// the number of rows inserted or updated.
func (pg *Postgres) StoreRawMarketData(ctx context.Context, data []*m.RawMarketDatum, policy m.ConflictPolicy) (int64, error) {
	for _, d := range data {
		if err := d.Normalize(); err != nil {
			return 0, err
		}
	}

	unique := ex.UniqueBy(data, func(d *m.RawMarketDatum) string { return d.Key() })
	rows := make([][]any, len(unique))
	for i, d := range unique {
		rows[i] = d.CopyRow()
	}

	return pg.bulkWrite(ctx, bulkWrite{
		table:   "raw_market_data",
		columns: m.RawMarketDataColumns,
		key:     m.RawMarketDataKey,
		rows:    rows,
		policy:  policy,
	})
}

// GetRawMarketData returns quotes for ticker in [from, to), oldest first.
func (pg *Postgres) GetRawMarketData(ctx context.Context, ticker string, from, to time.Time) ([]*m.RawMarketDatum, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	args := pgx.NamedArgs{
		"ticker": ticker,
		"from":   from.UTC(),
		"to":     to.UTC(),
	}

	res, err := Query[m.RawMarketDatum](ctx, pg, q.Get(q.QueryHelper.Select.RawMarketData), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query raw market data by ticker (%s): %w", ticker, err)
	}
	return res, nil
}

// GetMostRecentRawTimestamp returns nil when the ticker has no quotes yet.
func (pg *Postgres) GetMostRecentRawTimestamp(ctx context.Context, ticker string) (*time.Time, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var ts pgtype.Timestamp
	sql := q.Get(q.QueryHelper.Select.MostRecentRawTimestamp)
	if err := pg.db.QueryRow(ctx, sql, pgx.NamedArgs{"ticker": ticker}).Scan(&ts); err != nil {
		return nil, fmt.Errorf("error getting most recent timestamp for %s: %w", ticker, err)
	}
	if !ts.Valid {
		return nil, nil
	}

	return &ts.Time, nil
}

// DeleteRawMarketDataBefore removes quotes older than cutoff and returns how many went.
func (pg *Postgres) DeleteRawMarketDataBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return 0, err
	}

	args := pgx.NamedArgs{
		"ticker": ticker,
		"cutoff": cutoff.UTC(),
	}

	tag, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.RawMarketDataBefore), args)
	if err != nil {
		return 0, fmt.Errorf("error deleting raw market data for %s before %s: %w", ticker, ex.FmtLong(cutoff), err)
	}

	return tag.RowsAffected(), nil
}
