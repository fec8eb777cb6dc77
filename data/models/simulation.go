package models

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// SimulationRun is the root of a Monte Carlo run. Every result and summary row
// references it and is removed with it.
type SimulationRun struct {
	RunId            int32         `db:"run_id" json:"runId"`
	PortfolioType    PortfolioType `db:"portfolio_type" json:"portfolioType"`
	TimeHorizonYears int32         `db:"time_horizon_years" json:"timeHorizonYears"`
	NumSimulations   int32         `db:"num_simulations" json:"numSimulations"`
	CreatedAt        null.Time     `db:"created_at" json:"createdAt"`
}

func (r *SimulationRun) Validate() error {
	if !r.PortfolioType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPortfolioType, string(r.PortfolioType))
	}
	if r.TimeHorizonYears <= 0 {
		return fmt.Errorf("time horizon must be positive, got %d", r.TimeHorizonYears)
	}
	if r.NumSimulations <= 0 {
		return fmt.Errorf("number of simulations must be positive, got %d", r.NumSimulations)
	}
	return nil
}

// SimulationRunFilter narrows ListSimulationRuns; zero values are ignored.
type SimulationRunFilter struct {
	PortfolioType PortfolioType
	Since         time.Time
	Limit         int
}

// SimulationResult is one ticker's outcome within one trial.
type SimulationResult struct {
	Id               int32           `db:"id" json:"id"`
	RunId            int32           `db:"run_id" json:"runId"`
	Ticker           string          `db:"ticker" json:"ticker"`
	InitialValue     decimal.Decimal `db:"initial_value" json:"initialValue"`
	FinalValue       decimal.Decimal `db:"final_value" json:"finalValue"`
	ReturnPct        decimal.Decimal `db:"return_pct" json:"returnPct"`
	SimulationNumber int32           `db:"simulation_number" json:"simulationNumber"`
}

var SimulationResultColumns = []string{
	"run_id", "ticker", "initial_value", "final_value", "return_pct", "simulation_number",
}

func (s *SimulationResult) Normalize() error {
	ticker, err := NormalizeTicker(s.Ticker)
	if err != nil {
		return err
	}
	s.Ticker = ticker

	if s.SimulationNumber <= 0 {
		return fmt.Errorf("simulation result %s: simulation number must be positive, got %d", ticker, s.SimulationNumber)
	}

	if s.InitialValue, err = MoneyNumeric.Fit(s.InitialValue); err != nil {
		return fmt.Errorf("simulation result %s#%d: column initial_value: %w", ticker, s.SimulationNumber, err)
	}
	if s.FinalValue, err = MoneyNumeric.Fit(s.FinalValue); err != nil {
		return fmt.Errorf("simulation result %s#%d: column final_value: %w", ticker, s.SimulationNumber, err)
	}
	if s.ReturnPct, err = PercentNumeric.Fit(s.ReturnPct); err != nil {
		return fmt.Errorf("simulation result %s#%d: column return_pct: %w", ticker, s.SimulationNumber, err)
	}
	return nil
}

func (s *SimulationResult) CopyRow() []any {
	return []any{
		s.RunId, s.Ticker,
		PgNumeric(s.InitialValue), PgNumeric(s.FinalValue), PgNumeric(s.ReturnPct),
		s.SimulationNumber,
	}
}

// PortfolioResult is one trial's combined-portfolio outcome.
type PortfolioResult struct {
	Id               int32           `db:"id" json:"id"`
	RunId            int32           `db:"run_id" json:"runId"`
	PortfolioType    PortfolioType   `db:"portfolio_type" json:"portfolioType"`
	FinalValue       decimal.Decimal `db:"final_value" json:"finalValue"`
	ReturnPct        decimal.Decimal `db:"return_pct" json:"returnPct"`
	SimulationNumber int32           `db:"simulation_number" json:"simulationNumber"`
}

var PortfolioResultColumns = []string{
	"run_id", "portfolio_type", "final_value", "return_pct", "simulation_number",
}

func (p *PortfolioResult) Normalize() error {
	if !p.PortfolioType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPortfolioType, string(p.PortfolioType))
	}
	if p.SimulationNumber <= 0 {
		return fmt.Errorf("portfolio result: simulation number must be positive, got %d", p.SimulationNumber)
	}

	var err error
	if p.FinalValue, err = MoneyNumeric.Fit(p.FinalValue); err != nil {
		return fmt.Errorf("portfolio result #%d: column final_value: %w", p.SimulationNumber, err)
	}
	if p.ReturnPct, err = PercentNumeric.Fit(p.ReturnPct); err != nil {
		return fmt.Errorf("portfolio result #%d: column return_pct: %w", p.SimulationNumber, err)
	}
	return nil
}

func (p *PortfolioResult) CopyRow() []any {
	return []any{
		p.RunId, string(p.PortfolioType),
		PgNumeric(p.FinalValue), PgNumeric(p.ReturnPct),
		p.SimulationNumber,
	}
}

// SimulationSummary is one aggregate statistic for a portfolio within a run.
type SimulationSummary struct {
	Id            int32           `db:"id" json:"id"`
	RunId         int32           `db:"run_id" json:"runId"`
	PortfolioType PortfolioType   `db:"portfolio_type" json:"portfolioType"`
	MetricName    MetricName      `db:"metric_name" json:"metricName"`
	MetricValue   decimal.Decimal `db:"metric_value" json:"metricValue"`
}

var SimulationSummaryColumns = []string{
	"run_id", "portfolio_type", "metric_name", "metric_value",
}

func (s *SimulationSummary) Normalize() error {
	if !s.PortfolioType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPortfolioType, string(s.PortfolioType))
	}
	if !s.MetricName.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetricName, string(s.MetricName))
	}

	var err error
	if s.MetricValue, err = MoneyNumeric.Fit(s.MetricValue); err != nil {
		return fmt.Errorf("summary %s: column metric_value: %w", s.MetricName, err)
	}
	return nil
}

func (s *SimulationSummary) CopyRow() []any {
	return []any{
		s.RunId, string(s.PortfolioType), string(s.MetricName), PgNumeric(s.MetricValue),
	}
}

// SimulationRunGraph is everything one run writes, committed together.
type SimulationRunGraph struct {
	Run              SimulationRun
	Results          []*SimulationResult
	PortfolioResults []*PortfolioResult
	Summary          []*SimulationSummary
}

// SetRunId stamps the owning run on every child row.
func (g *SimulationRunGraph) SetRunId(id int32) {
	g.Run.RunId = id
	for _, r := range g.Results {
		r.RunId = id
	}
	for _, p := range g.PortfolioResults {
		p.RunId = id
	}
	for _, s := range g.Summary {
		s.RunId = id
	}
}

// Normalize validates the run and fits every child row.
func (g *SimulationRunGraph) Normalize() error {
	if err := g.Run.Validate(); err != nil {
		return err
	}
	for _, r := range g.Results {
		if err := r.Normalize(); err != nil {
			return err
		}
	}
	for _, p := range g.PortfolioResults {
		if err := p.Normalize(); err != nil {
			return err
		}
	}
	for _, s := range g.Summary {
		if err := s.Normalize(); err != nil {
			return err
		}
	}
	return nil
}

// RunCounts is the per-run child row tally used by listings and reports.
type RunCounts struct {
	Results          int64 `db:"results"`
	PortfolioResults int64 `db:"portfolio_results"`
	Summary          int64 `db:"summary"`
}
