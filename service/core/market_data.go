package core

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	m "mc.store/data/models"
)

const (
	DefaultQuotePolicy   = m.ConflictSkip
	DefaultFeaturePolicy = m.ConflictOverwrite
)

// StoreQuotes writes one ticker's vendor quotes. Every row is stamped with the
// ticker so a file never has to repeat it.
func (sc *ServiceContext) StoreQuotes(ticker string, quotes []*m.RawMarketDatum, policy m.ConflictPolicy) (int64, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return 0, err
	}

	for _, q := range quotes {
		q.Ticker = ticker
	}

	logger := sc.log().WithFields(logrus.Fields{"ticker": ticker, "rows": len(quotes), "policy": policy.String()})
	logger.Debug("storing raw quotes")

	written, err := sc.Store.StoreRawMarketData(sc.Context, quotes, policy)
	if err != nil {
		logger.WithError(err).Error("error storing raw quotes")
		return 0, fmt.Errorf("error storing quotes for %s: %w", ticker, err)
	}

	logger.WithField("written", written).Info("stored raw quotes")
	return written, nil
}

// StoreFeatures writes one ticker's derived daily rows.
func (sc *ServiceContext) StoreFeatures(ticker string, rows []*m.ProcessedMarketDatum, policy m.ConflictPolicy) (int64, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return 0, err
	}

	for _, r := range rows {
		r.Ticker = ticker
	}

	logger := sc.log().WithFields(logrus.Fields{"ticker": ticker, "rows": len(rows), "policy": policy.String()})
	logger.Debug("storing processed rows")

	written, err := sc.Store.StoreProcessedMarketData(sc.Context, rows, policy)
	if err != nil {
		logger.WithError(err).Error("error storing processed rows")
		return 0, fmt.Errorf("error storing features for %s: %w", ticker, err)
	}

	logger.WithField("written", written).Info("stored processed rows")
	return written, nil
}

// PruneQuotes drops raw quotes older than cutoff. The most recent quote is
// always kept so incremental pulls still know where to resume.
func (sc *ServiceContext) PruneQuotes(ticker string, cutoff time.Time) (int64, error) {
	ticker, err := m.NormalizeTicker(ticker)
	if err != nil {
		return 0, err
	}

	latest, err := sc.Store.GetMostRecentRawTimestamp(sc.Context, ticker)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	if !cutoff.Before(*latest) {
		cutoff = *latest
	}

	deleted, err := sc.Store.DeleteRawMarketDataBefore(sc.Context, ticker, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error pruning quotes for %s: %w", ticker, err)
	}

	sc.log().WithFields(logrus.Fields{"ticker": ticker, "rows": deleted, "cutoff": cutoff}).Info("pruned raw quotes")
	return deleted, nil
}
