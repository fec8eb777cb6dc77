package queries

import (
	"embed"
	"fmt"
)

//go:embed delete/*.sql insert/*.sql select/*.sql
var Files embed.FS

// ^^^ embedded at compile time, Get never touches the filesystem

type DeleteQueries struct {
	ProcessedMarketDataByTicker string
	RawMarketDataBefore         string
	SimulationRun               string
}

type InsertQueries struct {
	ProcessedMarketDatum string
	RawMarketDatum       string
	SimulationResult     string
	SimulationRun        string
}

type SelectQueries struct {
	DailyReturns               string
	LatestProcessedMarketDatum string
	MostRecentRawTimestamp     string
	PortfolioResultsByRun      string
	ProcessedMarketData        string
	RawMarketData              string
	RunCounts                  string
	SimulationResultsByRun     string
	SimulationRunById          string
	SimulationRuns             string
	SimulationSummaryByRun     string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Insert InsertQueries
	Select SelectQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		ProcessedMarketDataByTicker: "delete/processed_market_data_by_ticker.sql",
		RawMarketDataBefore:         "delete/raw_market_data_before.sql",
		SimulationRun:               "delete/simulation_run.sql",
	},
	Insert: InsertQueries{
		ProcessedMarketDatum: "insert/processed_market_datum.sql",
		RawMarketDatum:       "insert/raw_market_datum.sql",
		SimulationResult:     "insert/simulation_result.sql",
		SimulationRun:        "insert/simulation_run.sql",
	},
	Select: SelectQueries{
		DailyReturns:               "select/daily_returns.sql",
		LatestProcessedMarketDatum: "select/latest_processed_market_datum.sql",
		MostRecentRawTimestamp:     "select/most_recent_raw_timestamp.sql",
		PortfolioResultsByRun:      "select/portfolio_results_by_run.sql",
		ProcessedMarketData:        "select/processed_market_data.sql",
		RawMarketData:              "select/raw_market_data.sql",
		RunCounts:                  "select/run_counts.sql",
		SimulationResultsByRun:     "select/simulation_results_by_run.sql",
		SimulationRunById:          "select/simulation_run_by_id.sql",
		SimulationRuns:             "select/simulation_runs.sql",
		SimulationSummaryByRun:     "select/simulation_summary_by_run.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
