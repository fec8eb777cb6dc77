package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	m "mc.store/data/models"
	"mc.store/data/repos"
	"mc.store/service/idempotency"
)

// memoryStore keeps runs in memory and mirrors the repository's normalization.
type memoryStore struct {
	mu      sync.Mutex
	nextId  int32
	runs    map[int32]*m.SimulationRunGraph
	raw     []*m.RawMarketDatum
	feature []*m.ProcessedMarketDatum
	inserts int
	failOn  int // fail the nth graph insert, 0 never

	// cancelOn cancels the caller's context during the nth graph insert
	cancelOn int
	cancel   context.CancelFunc

	deletedBefore time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[int32]*m.SimulationRunGraph{}}
}

func (s *memoryStore) ApplySchema(context.Context) error {
	return nil
}

var errInjected = errors.New("injected failure")

func (s *memoryStore) StoreRawMarketData(_ context.Context, data []*m.RawMarketDatum, _ m.ConflictPolicy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, data...)
	return int64(len(data)), nil
}

func (s *memoryStore) StoreProcessedMarketData(_ context.Context, data []*m.ProcessedMarketDatum, _ m.ConflictPolicy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feature = append(s.feature, data...)
	return int64(len(data)), nil
}

func (s *memoryStore) GetMostRecentRawTimestamp(_ context.Context, ticker string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, r := range s.raw {
		if r.Ticker == ticker && (latest == nil || r.Timestamp.After(*latest)) {
			ts := r.Timestamp
			latest = &ts
		}
	}
	return latest, nil
}

func (s *memoryStore) DeleteRawMarketDataBefore(_ context.Context, ticker string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedBefore = cutoff
	kept := s.raw[:0]
	var n int64
	for _, r := range s.raw {
		if r.Ticker == ticker && r.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.raw = kept
	return n, nil
}

func (s *memoryStore) InsertSimulationRunGraph(ctx context.Context, g *m.SimulationRunGraph) error {
	if err := g.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failOn != 0 && s.inserts == s.failOn {
		return errInjected
	}
	if s.cancelOn != 0 && s.inserts == s.cancelOn {
		s.cancel()
		return ctx.Err()
	}

	s.nextId++
	g.Run.RunId = s.nextId
	g.Run.CreatedAt = null.TimeFrom(time.Now().UTC())
	g.SetRunId(s.nextId)
	s.runs[s.nextId] = g
	return nil
}

func (s *memoryStore) GetSimulationRun(_ context.Context, runId int32) (*m.SimulationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.runs[runId]
	if !ok {
		return nil, nil
	}
	run := g.Run
	return &run, nil
}

func (s *memoryStore) ListSimulationRuns(_ context.Context, filter m.SimulationRunFilter) ([]*m.SimulationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*m.SimulationRun
	for id := s.nextId; id > 0; id-- {
		g, ok := s.runs[id]
		if !ok || (filter.PortfolioType != "" && g.Run.PortfolioType != filter.PortfolioType) {
			continue
		}
		run := g.Run
		res = append(res, &run)
	}
	return res, nil
}

func (s *memoryStore) GetRunCounts(_ context.Context, runId int32) (*m.RunCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.runs[runId]
	if !ok {
		return &m.RunCounts{}, nil
	}
	return &m.RunCounts{
		Results:          int64(len(g.Results)),
		PortfolioResults: int64(len(g.PortfolioResults)),
		Summary:          int64(len(g.Summary)),
	}, nil
}

func (s *memoryStore) GetSimulationSummaryByRun(_ context.Context, runId int32) ([]*m.SimulationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.runs[runId]
	if !ok {
		return nil, nil
	}
	return g.Summary, nil
}

func (s *memoryStore) DeleteSimulationRun(_ context.Context, runId int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runId]; !ok {
		return repos.ErrNotFound
	}
	delete(s.runs, runId)
	return nil
}

// brokenCompletion records nothing on Complete.
type brokenCompletion struct {
	*idempotency.Store
}

func (brokenCompletion) Complete(context.Context, string, int32) error {
	return errInjected
}

func (s *memoryStore) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
