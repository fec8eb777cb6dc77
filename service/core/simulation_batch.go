package core

import (
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ex "mc.store/data/extensions"
	sm "mc.store/service/models"
)

const (
	DefaultWorkers = 8
	BatchSize      = 4
)

// RecordRequest pairs a record with the request id it was submitted under.
type RecordRequest struct {
	Record    *sm.SimulationRecord
	RequestID string
}

type job struct {
	start int
	end   int
}

// GetNumberOfJobsAndWorkers splits n items into batches of batchSize and caps the
// worker count at the number of batches. Each job covers [start, end).
func GetNumberOfJobsAndWorkers(n int, batchSize int, workers int) ([]job, int) {
	nJobs := int(math.Ceil(float64(n) / float64(batchSize)))
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, n),
		}
	}

	return jobs, nWorkers
}

// RecordSimulations stores independent runs concurrently. Each run still commits
// on its own, so the first failure cancels the remaining work but leaves runs that
// already committed in place. Outcomes line up with requests by index.
func (sc *ServiceContext) RecordSimulations(requests []RecordRequest) ([]sm.RecordOutcome, error) {
	res := make([]sm.RecordOutcome, len(requests))
	if len(requests) == 0 {
		return res, nil
	}

	workers := sc.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	jobs, nWorkers := GetNumberOfJobsAndWorkers(len(requests), BatchSize, workers)

	sc.log().WithFields(logrus.Fields{
		"runs":    len(requests),
		"jobs":    len(jobs),
		"workers": nWorkers,
	}).Info("recording simulation runs")

	jobsChannel := make(chan job, len(jobs))
	for _, v := range jobs {
		jobsChannel <- v
	}
	close(jobsChannel)

	// derived from the service context so a cancelled command stops the workers
	g, ctx := errgroup.WithContext(sc.Context)

	for range nWorkers {
		worker := *sc
		worker.Context = ctx

		g.Go(func() error {
			for j := range jobsChannel {
				for i := j.start; i < j.end; i++ {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}

					outcome, err := worker.RecordSimulation(requests[i].Record, requests[i].RequestID)
					if err != nil {
						worker.log().WithError(err).WithField("index", i).Error("error recording simulation run")
						return err
					}
					res[i] = outcome
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	return res, nil
}
