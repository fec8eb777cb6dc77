package commands

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mc.store/data/models"
	"mc.store/data/repos"
	"mc.store/service/core"
)

type fakeStore struct {
	raw      map[string][]*m.RawMarketDatum
	features map[string][]*m.ProcessedMarketDatum
	runs     map[int32]*m.SimulationRunGraph
	nextId   int32
	applied  bool
	pruned   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		raw:      map[string][]*m.RawMarketDatum{},
		features: map[string][]*m.ProcessedMarketDatum{},
		runs:     map[int32]*m.SimulationRunGraph{},
	}
}

func (s *fakeStore) ApplySchema(context.Context) error {
	s.applied = true
	return nil
}

func (s *fakeStore) StoreRawMarketData(_ context.Context, data []*m.RawMarketDatum, _ m.ConflictPolicy) (int64, error) {
	for _, d := range data {
		if err := d.Normalize(); err != nil {
			return 0, err
		}
		s.raw[d.Ticker] = append(s.raw[d.Ticker], d)
	}
	return int64(len(data)), nil
}

func (s *fakeStore) StoreProcessedMarketData(_ context.Context, data []*m.ProcessedMarketDatum, _ m.ConflictPolicy) (int64, error) {
	for _, d := range data {
		if err := d.Normalize(); err != nil {
			return 0, err
		}
		s.features[d.Ticker] = append(s.features[d.Ticker], d)
	}
	return int64(len(data)), nil
}

func (s *fakeStore) GetMostRecentRawTimestamp(_ context.Context, ticker string) (*time.Time, error) {
	var latest *time.Time
	for _, r := range s.raw[ticker] {
		if latest == nil || r.Timestamp.After(*latest) {
			ts := r.Timestamp
			latest = &ts
		}
	}
	return latest, nil
}

func (s *fakeStore) DeleteRawMarketDataBefore(_ context.Context, ticker string, cutoff time.Time) (int64, error) {
	s.pruned = cutoff
	var kept []*m.RawMarketDatum
	for _, r := range s.raw[ticker] {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	n := int64(len(s.raw[ticker]) - len(kept))
	s.raw[ticker] = kept
	return n, nil
}

func (s *fakeStore) InsertSimulationRunGraph(_ context.Context, g *m.SimulationRunGraph) error {
	if err := g.Normalize(); err != nil {
		return err
	}
	s.nextId++
	g.Run.RunId = s.nextId
	g.Run.CreatedAt = null.TimeFrom(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC))
	g.SetRunId(s.nextId)
	s.runs[s.nextId] = g
	return nil
}

func (s *fakeStore) GetSimulationRun(_ context.Context, runId int32) (*m.SimulationRun, error) {
	g, ok := s.runs[runId]
	if !ok {
		return nil, nil
	}
	run := g.Run
	return &run, nil
}

func (s *fakeStore) ListSimulationRuns(_ context.Context, filter m.SimulationRunFilter) ([]*m.SimulationRun, error) {
	var res []*m.SimulationRun
	for id := s.nextId; id > 0; id-- {
		if g, ok := s.runs[id]; ok && (filter.PortfolioType == "" || g.Run.PortfolioType == filter.PortfolioType) {
			run := g.Run
			res = append(res, &run)
		}
	}
	return res, nil
}

func (s *fakeStore) GetRunCounts(_ context.Context, runId int32) (*m.RunCounts, error) {
	g := s.runs[runId]
	return &m.RunCounts{
		Results:          int64(len(g.Results)),
		PortfolioResults: int64(len(g.PortfolioResults)),
		Summary:          int64(len(g.Summary)),
	}, nil
}

func (s *fakeStore) GetSimulationSummaryByRun(_ context.Context, runId int32) ([]*m.SimulationSummary, error) {
	return s.runs[runId].Summary, nil
}

func (s *fakeStore) DeleteSimulationRun(_ context.Context, runId int32) error {
	if _, ok := s.runs[runId]; !ok {
		return repos.ErrNotFound
	}
	delete(s.runs, runId)
	return nil
}

type result struct {
	status subcommands.ExitStatus
	stdout string
	stderr string
}

func execute(t *testing.T, store *fakeStore, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	fs := flag.NewFlagSet("mcstore", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "mcstore")
	commander.Output = &stdout
	commander.Error = &stderr

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	opener := func(ctx context.Context) (*core.ServiceContext, func(), error) {
		if store == nil {
			return nil, nil, errors.New("no database")
		}
		return &core.ServiceContext{Context: ctx, Store: store, Workers: 2, Logger: logger}, func() {}, nil
	}
	Register(commander, opener, &stdout, &stderr)

	require.NoError(t, fs.Parse(args))
	status := commander.Execute(context.Background())

	return result{status: status, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeCSV_RawQuotes(t *testing.T) {
	in := "Ticker,timestamp,open,high,low,close,volume,vwap\n" +
		"aapl,2024-01-02T09:30:00-05:00,185.5,186,184.25,185.75,1200,\n" +
		"AAPL,2024-01-03,,,,,,\n"

	rows, err := DecodeCSV[m.RawMarketDatum](strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "aapl", rows[0].Ticker)
	assert.True(t, rows[0].Timestamp.Equal(time.Date(2024, time.January, 2, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, "185.5", rows[0].Open.Decimal.String())
	assert.Equal(t, int64(1200), rows[0].Volume.Int64)
	assert.False(t, rows[0].Vwap.Valid)

	assert.Equal(t, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), rows[1].Timestamp)
	assert.False(t, rows[1].Close.Valid)
	assert.False(t, rows[1].Volume.Valid)
}

func TestDecodeCSV_ProcessedRows(t *testing.T) {
	in := "date,close,month,up_day,rsi14,return\n2024-03-15,510.25,3,1,55.5,0.0012\n"

	rows, err := DecodeCSV[m.ProcessedMarketDatum](strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Month.Int64)
	assert.Equal(t, int64(1), rows[0].UpDay.Int64)
	assert.Equal(t, "55.5", rows[0].Rsi14.Decimal.String())
	assert.Equal(t, "0.0012", rows[0].Return.Decimal.String())
}

func TestDecodeCSV_Rejects(t *testing.T) {
	_, err := DecodeCSV[m.RawMarketDatum](strings.NewReader("timestamp,colse\n2024-01-02,1\n"))
	assert.ErrorContains(t, err, "colse")

	_, err = DecodeCSV[m.RawMarketDatum](strings.NewReader("timestamp,close\n2024-01-02,abc\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = DecodeCSV[m.RawMarketDatum](strings.NewReader("timestamp,close\nyesterday,1\n"))
	assert.ErrorContains(t, err, "yesterday")

	_, err = DecodeCSV[m.RawMarketDatum](strings.NewReader(""))
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	res := execute(t, nil, "schema")
	assert.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Contains(t, res.stdout, "CREATE TABLE IF NOT EXISTS simulation_runs")

	res = execute(t, nil, "schema", "-apply")
	assert.Equal(t, subcommands.ExitFailure, res.status)
	assert.Contains(t, res.stderr, "no database")

	store := newFakeStore()
	res = execute(t, store, "schema", "-apply")
	assert.Equal(t, subcommands.ExitSuccess, res.status)
	assert.True(t, store.applied)
	assert.Contains(t, res.stdout, "6 tables, 5 indexes")
}

func TestImportQuotesAndPrune(t *testing.T) {
	store := newFakeStore()
	path := writeFile(t, "quotes.csv", "ticker,timestamp,close\nspy,2024-01-02,470\nSPY,2024-01-03,472\nqqq,2024-01-02,400\n")

	res := execute(t, store, "import-quotes", path)
	require.Equal(t, subcommands.ExitSuccess, res.status, res.stderr)
	assert.Contains(t, res.stdout, "SPY: 2 of 2 quotes written")
	assert.Contains(t, res.stdout, "QQQ: 1 of 1 quotes written")
	assert.Len(t, store.raw["SPY"], 2)

	res = execute(t, store, "import-quotes", "-ticker", "iwm", path)
	require.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Len(t, store.raw["IWM"], 3)

	res = execute(t, store, "import-quotes", "-policy", "merge", path)
	assert.Equal(t, subcommands.ExitUsageError, res.status)

	noTicker := writeFile(t, "bare.csv", "timestamp,close\n2024-01-02,1\n")
	res = execute(t, store, "import-quotes", noTicker)
	assert.Equal(t, subcommands.ExitUsageError, res.status)

	res = execute(t, store, "prune-quotes", "-ticker", "spy", "-before", "2024-01-03")
	require.Equal(t, subcommands.ExitSuccess, res.status, res.stderr)
	assert.Contains(t, res.stdout, "1 quotes deleted")
	assert.Len(t, store.raw["SPY"], 1)

	res = execute(t, store, "prune-quotes", "-ticker", "spy")
	assert.Equal(t, subcommands.ExitUsageError, res.status)
}

func TestImportFeatures(t *testing.T) {
	store := newFakeStore()
	path := writeFile(t, "features.csv", "date,close,rsi14,up_day,down_day\n2024-03-15,510.25,55.123456,1,0\n")

	res := execute(t, store, "import-features", "-ticker", "spy", path)
	require.Equal(t, subcommands.ExitSuccess, res.status, res.stderr)
	require.Len(t, store.features["SPY"], 1)
	assert.Equal(t, "55.1235", store.features["SPY"][0].Rsi14.Decimal.String())

	bad := writeFile(t, "bad.csv", "date,up_day\n2024-03-15,2\n")
	res = execute(t, store, "import-features", "-ticker", "spy", bad)
	assert.Equal(t, subcommands.ExitFailure, res.status)
	assert.Contains(t, res.stderr, "up_day")
}

const recordJSON = `{
	"portfolioType": "B",
	"timeHorizonYears": 5,
	"numSimulations": 2,
	"tickers": [
		{"ticker": "VTI", "initialValue": "1000", "trials": [
			{"simulationNumber": 1, "finalValue": "1500"},
			{"simulationNumber": 2, "finalValue": "900"}
		]}
	]
}`

func TestImportRunShowAndDelete(t *testing.T) {
	store := newFakeStore()
	path := writeFile(t, "run.json", recordJSON)
	batch := writeFile(t, "runs.json", "["+recordJSON+","+recordJSON+"]")

	res := execute(t, store, "import-run", path, batch)
	require.Equal(t, subcommands.ExitSuccess, res.status, res.stderr)
	assert.Equal(t, "run 1 recorded\nrun 2 recorded\nrun 3 recorded\n", res.stdout)

	res = execute(t, store, "runs", "-portfolio", "b")
	require.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Contains(t, res.stdout, "| 3 | B | 5 | 2 |")

	res = execute(t, store, "runs", "-portfolio", "C")
	assert.Equal(t, subcommands.ExitUsageError, res.status)

	res = execute(t, store, "show-run", "-id", "1")
	require.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Contains(t, res.stdout, "# Simulation Run 1")
	assert.Contains(t, res.stdout, "| mean | $1,200.00 |")

	res = execute(t, store, "show-run", "-id", "1", "-json")
	require.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Contains(t, res.stdout, `"runId": 1`)
	assert.Contains(t, res.stdout, `"error": ""`)

	res = execute(t, store, "show-run", "-id", "99", "-json")
	assert.Equal(t, subcommands.ExitFailure, res.status)
	assert.Contains(t, res.stdout, `"data": null`)
	assert.Contains(t, res.stdout, "simulation run not found: 99")

	res = execute(t, store, "delete-run", "-id", "1")
	require.Equal(t, subcommands.ExitSuccess, res.status)
	assert.Equal(t, "run 1 deleted\n", res.stdout)

	res = execute(t, store, "delete-run", "-id", "1")
	assert.Equal(t, subcommands.ExitFailure, res.status)
	assert.Contains(t, res.stderr, "not found")

	res = execute(t, store, "show-run")
	assert.Equal(t, subcommands.ExitUsageError, res.status)
}

func TestImportRunRejectsUnknownFields(t *testing.T) {
	store := newFakeStore()
	path := writeFile(t, "run.json", `{"portfolioType": "A", "horizon": 5}`)

	res := execute(t, store, "import-run", path)
	assert.Equal(t, subcommands.ExitFailure, res.status)
	assert.Contains(t, res.stderr, "horizon")
	assert.Empty(t, store.runs)
}
