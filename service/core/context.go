package core

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	m "mc.store/data/models"
	"mc.store/service/idempotency"
)

var (
	ErrInvalidRecord = errors.New("invalid simulation record")
	ErrRunInProgress = errors.New("a run with this request id is still being recorded")
	ErrRunNotFound   = errors.New("simulation run not found")
)

// Store is what the writers need from persistence. *repos.Postgres satisfies it.
type Store interface {
	ApplySchema(ctx context.Context) error

	StoreRawMarketData(ctx context.Context, data []*m.RawMarketDatum, policy m.ConflictPolicy) (int64, error)
	StoreProcessedMarketData(ctx context.Context, data []*m.ProcessedMarketDatum, policy m.ConflictPolicy) (int64, error)
	GetMostRecentRawTimestamp(ctx context.Context, ticker string) (*time.Time, error)
	DeleteRawMarketDataBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error)

	InsertSimulationRunGraph(ctx context.Context, g *m.SimulationRunGraph) error
	GetSimulationRun(ctx context.Context, runId int32) (*m.SimulationRun, error)
	ListSimulationRuns(ctx context.Context, filter m.SimulationRunFilter) ([]*m.SimulationRun, error)
	GetRunCounts(ctx context.Context, runId int32) (*m.RunCounts, error)
	GetSimulationSummaryByRun(ctx context.Context, runId int32) ([]*m.SimulationSummary, error)
	DeleteSimulationRun(ctx context.Context, runId int32) error
}

// IdempotencyStore is satisfied by *idempotency.Store.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (idempotency.Reservation, error)
	Complete(ctx context.Context, key string, runId int32) error
	Release(ctx context.Context, key string) error
}

type ServiceContext struct {
	Context     context.Context
	Store       Store
	Idempotency IdempotencyStore // nil disables request id dedupe
	Workers     int
	Logger      logrus.FieldLogger
}

func (sc *ServiceContext) log() logrus.FieldLogger {
	if sc.Logger == nil {
		return logrus.StandardLogger()
	}
	return sc.Logger
}
