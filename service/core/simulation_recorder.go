package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	m "mc.store/data/models"
	sm "mc.store/service/models"
)

var hundred = decimal.NewFromInt(100)

// RecordSimulation stores a finished run with all of its rows in one commit.
// With a request id and an idempotency store, a retried record returns the run
// committed the first time instead of writing it again.
func (sc *ServiceContext) RecordSimulation(record *sm.SimulationRecord, requestID string) (sm.RecordOutcome, error) {
	start := time.Now()

	graph, err := BuildSimulationRunGraph(record)
	if err != nil {
		return sm.RecordOutcome{}, err
	}

	if sc.Idempotency == nil || requestID == "" {
		runId, err := sc.insertGraph(graph)
		return sm.RecordOutcome{RunId: runId}, err
	}

	key, err := IdempotencyKey(requestID, record)
	if err != nil {
		return sm.RecordOutcome{}, err
	}

	logger := sc.log().WithField("request_id", requestID)

	replayed, err := sc.reserve(key)
	if err != nil {
		return sm.RecordOutcome{}, err
	}
	if replayed != 0 {
		logger.WithField("run_id", replayed).Info("replaying previously recorded run")
		return sm.RecordOutcome{RunId: replayed, Replayed: true}, nil
	}

	// the key must be settled even when the write was cancelled
	settle := context.WithoutCancel(sc.Context)

	runId, err := sc.insertGraph(graph)
	if err != nil {
		if relErr := sc.Idempotency.Release(settle, key); relErr != nil {
			logger.WithError(relErr).Warn("error releasing idempotency key after failed write")
		}
		return sm.RecordOutcome{}, err
	}

	// the run is committed either way, a lost key only costs dedupe on retry
	if err := sc.Idempotency.Complete(settle, key, runId); err != nil {
		logger.WithError(err).WithField("run_id", runId).Warn("error completing idempotency key")
		if relErr := sc.Idempotency.Release(settle, key); relErr != nil {
			logger.WithError(relErr).Warn("error releasing idempotency key after failed completion")
		}
	}

	logger.WithFields(logrus.Fields{"run_id": runId, "elapsed": time.Since(start)}).Debug("recorded run under request id")
	return sm.RecordOutcome{RunId: runId}, nil
}

// reserve claims key and returns 0, or returns the live run already recorded under it.
func (sc *ServiceContext) reserve(key string) (int32, error) {
	for range 2 {
		res, err := sc.Idempotency.Reserve(sc.Context, key)
		if err != nil {
			return 0, err
		}

		switch {
		case res.Acquired:
			return 0, nil
		case res.Pending:
			return 0, ErrRunInProgress
		}

		run, err := sc.Store.GetSimulationRun(sc.Context, res.RunId)
		if err != nil {
			return 0, err
		}
		if run != nil {
			return run.RunId, nil
		}

		sc.log().WithField("run_id", res.RunId).Info("recorded run was deleted, recording again")
		if err := sc.Idempotency.Release(sc.Context, key); err != nil {
			return 0, err
		}
	}

	return 0, ErrRunInProgress
}

func (sc *ServiceContext) insertGraph(graph *m.SimulationRunGraph) (int32, error) {
	logger := sc.log().WithFields(logrus.Fields{
		"portfolio_type": graph.Run.PortfolioType.String(),
		"simulations":    graph.Run.NumSimulations,
		"rows":           len(graph.Results),
	})

	if err := sc.Store.InsertSimulationRunGraph(sc.Context, graph); err != nil {
		logger.WithError(err).Error("error recording simulation run")
		return 0, fmt.Errorf("error recording simulation run: %w", err)
	}

	logger.WithField("run_id", graph.Run.RunId).Info("recorded simulation run")
	return graph.Run.RunId, nil
}

// IdempotencyKey binds a request id to the exact record content, so reusing an
// id for a different record is not mistaken for a retry.
func IdempotencyKey(requestID string, record *sm.SimulationRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("error encoding record for idempotency key: %w", err)
	}

	sum := sha256.Sum256(payload)
	return requestID + ":" + hex.EncodeToString(sum[:]), nil
}

// BuildSimulationRunGraph validates a record and fills in whatever the driver
// left out: per trial return percentages, portfolio outcomes and summary metrics.
func BuildSimulationRunGraph(record *sm.SimulationRecord) (*m.SimulationRunGraph, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: record is empty", ErrInvalidRecord)
	}

	portfolioType, err := m.ParsePortfolioType(record.PortfolioType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	g := &m.SimulationRunGraph{
		Run: m.SimulationRun{
			PortfolioType:    portfolioType,
			TimeHorizonYears: record.TimeHorizonYears,
			NumSimulations:   record.NumSimulations,
		},
	}
	if err := g.Run.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if len(record.Tickers) == 0 {
		return nil, fmt.Errorf("%w: at least one ticker is required", ErrInvalidRecord)
	}

	n := record.NumSimulations
	totalInitial := decimal.Zero
	finals := make([]decimal.Decimal, n)
	seen := make(map[string]bool, len(record.Tickers))

	for _, t := range record.Tickers {
		ticker, err := m.NormalizeTicker(t.Ticker)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		if seen[ticker] {
			return nil, fmt.Errorf("%w: ticker %s appears more than once", ErrInvalidRecord, ticker)
		}
		seen[ticker] = true

		if !t.InitialValue.IsPositive() {
			return nil, fmt.Errorf("%w: ticker %s initial value must be positive", ErrInvalidRecord, ticker)
		}
		if err := checkTrials(t.Trials, n); err != nil {
			return nil, fmt.Errorf("%w: ticker %s: %w", ErrInvalidRecord, ticker, err)
		}

		totalInitial = totalInitial.Add(t.InitialValue)
		for _, trial := range t.Trials {
			finals[trial.SimulationNumber-1] = finals[trial.SimulationNumber-1].Add(trial.FinalValue)
			g.Results = append(g.Results, &m.SimulationResult{
				Ticker:           ticker,
				InitialValue:     t.InitialValue,
				FinalValue:       trial.FinalValue,
				ReturnPct:        trialReturn(trial, t.InitialValue),
				SimulationNumber: trial.SimulationNumber,
			})
		}
	}

	portfolioFinals := finals
	if len(record.Portfolio) > 0 {
		if err := checkTrials(record.Portfolio, n); err != nil {
			return nil, fmt.Errorf("%w: portfolio: %w", ErrInvalidRecord, err)
		}

		portfolioFinals = make([]decimal.Decimal, n)
		for _, trial := range record.Portfolio {
			portfolioFinals[trial.SimulationNumber-1] = trial.FinalValue
			g.PortfolioResults = append(g.PortfolioResults, &m.PortfolioResult{
				PortfolioType:    portfolioType,
				FinalValue:       trial.FinalValue,
				ReturnPct:        trialReturn(trial, totalInitial),
				SimulationNumber: trial.SimulationNumber,
			})
		}
	} else {
		for i, final := range finals {
			g.PortfolioResults = append(g.PortfolioResults, &m.PortfolioResult{
				PortfolioType:    portfolioType,
				FinalValue:       final,
				ReturnPct:        ReturnPct(totalInitial, final),
				SimulationNumber: int32(i + 1),
			})
		}
	}

	metrics := make(map[m.MetricName]decimal.Decimal, len(m.MetricNames))
	if len(record.Summary) > 0 {
		for k, v := range record.Summary {
			name, err := m.ParseMetricName(k)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
			}
			if _, dup := metrics[name]; dup {
				return nil, fmt.Errorf("%w: metric %s appears more than once", ErrInvalidRecord, name)
			}
			metrics[name] = v
		}
	} else {
		if metrics, err = Summarize(portfolioFinals); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}
	g.Summary = summaryRows(portfolioType, metrics)

	return g, nil
}

// checkTrials requires exactly one outcome for each trial number 1..n.
func checkTrials(trials []sm.TrialOutcome, n int32) error {
	if int32(len(trials)) != n {
		return fmt.Errorf("expected %d trials, got %d", n, len(trials))
	}

	seen := make([]bool, n)
	for _, t := range trials {
		if t.SimulationNumber < 1 || t.SimulationNumber > n {
			return fmt.Errorf("simulation number %d outside 1..%d", t.SimulationNumber, n)
		}
		if seen[t.SimulationNumber-1] {
			return fmt.Errorf("simulation number %d appears more than once", t.SimulationNumber)
		}
		seen[t.SimulationNumber-1] = true
	}
	return nil
}

func trialReturn(t sm.TrialOutcome, initial decimal.Decimal) decimal.Decimal {
	if t.ReturnPct != nil {
		return *t.ReturnPct
	}
	return ReturnPct(initial, t.FinalValue)
}

// ReturnPct is the percentage change from initial to final.
func ReturnPct(initial, final decimal.Decimal) decimal.Decimal {
	return final.Sub(initial).Div(initial).Mul(hundred)
}
