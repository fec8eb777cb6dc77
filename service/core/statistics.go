package core

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	ex "mc.store/data/extensions"
	m "mc.store/data/models"
)

var ErrNoValues = errors.New("no values to summarize")

// Summarize computes every vocabulary metric over the portfolio final values,
// rounded to cents. Percentiles interpolate linearly between closest ranks; std
// is the sample deviation and zero for a single trial.
func Summarize(values []decimal.Decimal) (map[m.MetricName]decimal.Decimal, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}

	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = v.InexactFloat64()
	}
	slices.Sort(sorted)

	raw := map[m.MetricName]float64{
		m.MetricMean: stat.Mean(sorted, nil),
		m.MetricMin:  floats.Min(sorted),
		m.MetricMax:  floats.Max(sorted),
		m.MetricStd:  0,
	}
	if len(sorted) > 1 {
		raw[m.MetricStd] = stat.StdDev(sorted, nil)
	}

	for _, name := range m.MetricNames {
		if q, ok := name.Quantile(); ok {
			raw[name] = quantile(q, sorted)
		}
	}

	res := make(map[m.MetricName]decimal.Decimal, len(raw))
	for name, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("metric %s is not finite", name)
		}
		res[name] = decimal.NewFromFloat(v).Round(m.MoneyNumeric.Scale)
	}

	return res, nil
}

// quantile reads the q-th quantile of sorted at rank (n-1)*q, interpolating
// between the two neighbouring values.
func quantile(q float64, sorted []float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	hi := math.Ceil(h)
	v := sorted[int(lo)]
	return v + (h-lo)*(sorted[int(hi)]-v)
}

// summaryRows lays metrics out in reporting order.
func summaryRows(portfolioType m.PortfolioType, metrics map[m.MetricName]decimal.Decimal) []*m.SimulationSummary {
	names := ex.FilterMultiple(m.MetricNames, func(name m.MetricName) bool {
		_, ok := metrics[name]
		return ok
	})

	rows := make([]*m.SimulationSummary, len(names))
	for i, name := range names {
		rows[i] = &m.SimulationSummary{
			PortfolioType: portfolioType,
			MetricName:    name,
			MetricValue:   metrics[name],
		}
	}
	return rows
}
