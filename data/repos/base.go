package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	m "mc.store/data/models"
	"mc.store/data/schema"
)

// DB is the slice of *pgxpool.Pool the repositories use.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

type Postgres struct {
	db DB
}

type PoolSettings struct {
	MaxConns int32
	MinConns int32
}

var DefaultPoolSettings = PoolSettings{MaxConns: 10, MinConns: 2}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func GetPostgresConnection(ctx context.Context, connectionString string, settings PoolSettings) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("error parsing pgx connection string: %w", err)
	}

	if settings.MaxConns > 0 {
		config.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		config.MinConns = settings.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error making new pgx pool: %w", err)
	}

	return NewPostgres(pool), nil
}

func (pg *Postgres) Ping(ctx context.Context) error {
	return pg.db.Ping(ctx)
}

func (pg *Postgres) Close() {
	pg.db.Close()
}

// ApplySchema creates any missing tables and indexes.
func (pg *Postgres) ApplySchema(ctx context.Context) error {
	return schema.Apply(ctx, pg.db)
}

// WithTransaction runs fn in a transaction and commits when it returns nil.
// Anything else rolls back, so fn's writes land together or not at all.
func (pg *Postgres) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := pg.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", classify(err))
	}

	return nil
}

func Query[T any](ctx context.Context, pg *Postgres, query string, args pgx.NamedArgs) ([]*T, error) {
	rows, err := pg.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query: %w", err)
	}
	defer rows.Close()

	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("error occured while collecting rows in query: %w", err)
	}

	result := make([]*T, len(res))
	for i := range res {
		result[i] = &res[i]
	}

	return result, nil
}

// QuerySingle returns nil, nil when nothing matches.
func QuerySingle[T any](ctx context.Context, pg *Postgres, query string, args pgx.NamedArgs) (*T, error) {
	res, err := Query[T](ctx, pg, query, args)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	if len(res) > 1 {
		return nil, errors.New("multiple results found")
	}

	return res[0], nil
}

// namedArgs pairs a column list with one row of values for the @name placeholders.
func namedArgs(columns []string, values []any) pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(columns))
	for i, c := range columns {
		args[c] = values[i]
	}
	return args
}

// bulkWrite describes a COPY into a transaction scoped staging table followed by
// a single INSERT ... SELECT into the target that resolves key conflicts.
type bulkWrite struct {
	table   string
	columns []string
	key     []string
	rows    [][]any
	policy  m.ConflictPolicy
}

func (w bulkWrite) stageTable() string {
	return w.table + "_stage"
}

func (w bulkWrite) createStageStatement() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{w.stageTable()}.Sanitize(),
		quoteColumns(w.columns),
		pgx.Identifier{w.table}.Sanitize())
}

func (w bulkWrite) mergeStatement() (string, error) {
	cols := quoteColumns(w.columns)
	stmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		pgx.Identifier{w.table}.Sanitize(), cols, cols, pgx.Identifier{w.stageTable()}.Sanitize())

	switch w.policy {
	case m.ConflictSkip:
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", stmt, quoteColumns(w.key)), nil
	case m.ConflictOverwrite:
		isKey := make(map[string]bool, len(w.key))
		for _, k := range w.key {
			isKey[k] = true
		}

		sets := make([]string, 0, len(w.columns))
		for _, c := range w.columns {
			if isKey[c] {
				continue
			}
			ident := pgx.Identifier{c}.Sanitize()
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
		}
		return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", stmt, quoteColumns(w.key), strings.Join(sets, ", ")), nil
	case m.ConflictFail:
		return stmt, nil
	default:
		return "", fmt.Errorf("%w: %d", m.ErrUnknownConflictPolicy, w.policy)
	}
}

func (pg *Postgres) bulkWriteTx(ctx context.Context, tx pgx.Tx, w bulkWrite) (int64, error) {
	merge, err := w.mergeStatement()
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, w.createStageStatement()); err != nil {
		return 0, fmt.Errorf("error creating staging table for %s: %w", w.table, err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{w.stageTable()}, w.columns, pgx.CopyFromRows(w.rows)); err != nil {
		return 0, fmt.Errorf("error copying %d rows into %s: %w", len(w.rows), w.stageTable(), classify(err))
	}

	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, fmt.Errorf("error merging staged rows into %s (policy %s): %w", w.table, w.policy, classify(err))
	}

	return tag.RowsAffected(), nil
}

func (pg *Postgres) bulkWrite(ctx context.Context, w bulkWrite) (int64, error) {
	if len(w.rows) == 0 {
		return 0, nil
	}

	var written int64
	err := pg.WithTransaction(ctx, func(tx pgx.Tx) error {
		n, err := pg.bulkWriteTx(ctx, tx, w)
		written = n
		return err
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
