package models

import (
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	dm "mc.store/data/models"
)

// SimulationRecord is what a simulation driver hands over once a run finishes.
// Portfolio outcomes and summary metrics are derived from the ticker trials when
// left out.
type SimulationRecord struct {
	PortfolioType    string                     `json:"portfolioType"`
	TimeHorizonYears int32                      `json:"timeHorizonYears"`
	NumSimulations   int32                      `json:"numSimulations"`
	Tickers          []TickerOutcomes           `json:"tickers"`
	Portfolio        []TrialOutcome             `json:"portfolio,omitempty"`
	Summary          map[string]decimal.Decimal `json:"summary,omitempty"`
}

// TickerOutcomes holds one ticker's allocation and its outcome in every trial.
type TickerOutcomes struct {
	Ticker       string          `json:"ticker"`
	InitialValue decimal.Decimal `json:"initialValue"`
	Trials       []TrialOutcome  `json:"trials"`
}

// TrialOutcome is one trial's final value. ReturnPct is computed from the
// initial value when nil.
type TrialOutcome struct {
	SimulationNumber int32            `json:"simulationNumber"`
	FinalValue       decimal.Decimal  `json:"finalValue"`
	ReturnPct        *decimal.Decimal `json:"returnPct,omitempty"`
}

// RunReport is the read side of a stored run.
type RunReport struct {
	RunId            int32                      `json:"runId"`
	PortfolioType    string                     `json:"portfolioType"`
	TimeHorizonYears int32                      `json:"timeHorizonYears"`
	NumSimulations   int32                      `json:"numSimulations"`
	CreatedAt        null.Time                  `json:"createdAt"`
	Results          int64                      `json:"results"`
	PortfolioResults int64                      `json:"portfolioResults"`
	Summary          map[string]decimal.Decimal `json:"summary"`
}

// RecordOutcome tells the caller whether a record was written or replayed.
type RecordOutcome struct {
	RunId    int32 `json:"runId"`
	Replayed bool  `json:"replayed"`
}

func MapSimulationRunToReport(run *dm.SimulationRun, counts *dm.RunCounts, summary []*dm.SimulationSummary) RunReport {
	res := RunReport{
		RunId:            run.RunId,
		PortfolioType:    run.PortfolioType.String(),
		TimeHorizonYears: run.TimeHorizonYears,
		NumSimulations:   run.NumSimulations,
		CreatedAt:        run.CreatedAt,
		Summary:          make(map[string]decimal.Decimal, len(summary)),
	}

	if counts != nil {
		res.Results = counts.Results
		res.PortfolioResults = counts.PortfolioResults
	}

	for _, s := range summary {
		res.Summary[s.MetricName.String()] = s.MetricValue
	}

	return res
}
