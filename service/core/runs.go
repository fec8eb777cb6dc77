package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	m "mc.store/data/models"
	"mc.store/data/repos"
	sm "mc.store/service/models"
)

// ApplySchema creates any tables and indexes that are missing.
func (sc *ServiceContext) ApplySchema() error {
	if err := sc.Store.ApplySchema(sc.Context); err != nil {
		return err
	}
	sc.log().Info("schema applied")
	return nil
}

func (sc *ServiceContext) ListRuns(filter m.SimulationRunFilter) ([]*m.SimulationRun, error) {
	return sc.Store.ListSimulationRuns(sc.Context, filter)
}

// GetRunReport loads a run with its row counts and summary metrics.
func (sc *ServiceContext) GetRunReport(runId int32) (*sm.RunReport, error) {
	run, err := sc.Store.GetSimulationRun(sc.Context, runId)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runId)
	}

	counts, err := sc.Store.GetRunCounts(sc.Context, runId)
	if err != nil {
		return nil, err
	}

	summary, err := sc.Store.GetSimulationSummaryByRun(sc.Context, runId)
	if err != nil {
		return nil, err
	}

	report := sm.MapSimulationRunToReport(run, counts, summary)
	return &report, nil
}

// DeleteRun removes a run and, through the cascade, every row that belongs to it.
func (sc *ServiceContext) DeleteRun(runId int32) error {
	if err := sc.Store.DeleteSimulationRun(sc.Context, runId); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrRunNotFound, runId)
		}
		return err
	}

	sc.log().WithFields(logrus.Fields{"run_id": runId}).Info("deleted simulation run")
	return nil
}
