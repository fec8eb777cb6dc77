package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnknownPortfolioType  = errors.New("unknown portfolio type")
	ErrUnknownMetricName     = errors.New("unknown metric name")
	ErrUnknownConflictPolicy = errors.New("unknown conflict policy")
	ErrInvalidTicker         = errors.New("invalid ticker")
)

const MaxTickerLength = 10

// PortfolioType is the closed set of portfolio variants a simulation run can target.
type PortfolioType string

const (
	PortfolioA PortfolioType = "A"
	PortfolioB PortfolioType = "B"
)

var PortfolioTypes = []PortfolioType{PortfolioA, PortfolioB}

func ParsePortfolioType(s string) (PortfolioType, error) {
	p := PortfolioType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPortfolioType, s)
	}
	return p, nil
}

func (p PortfolioType) Valid() bool {
	return p == PortfolioA || p == PortfolioB
}

func (p PortfolioType) String() string {
	return string(p)
}

func (p *PortfolioType) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return fmt.Errorf("error scanning portfolio type: %w", err)
	}
	parsed, err := ParsePortfolioType(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PortfolioType) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPortfolioType, string(p))
	}
	return string(p), nil
}

// MetricName is the fixed vocabulary of simulation_summary metrics.
type MetricName string

const (
	MetricMean   MetricName = "mean"
	MetricMedian MetricName = "median"
	MetricStd    MetricName = "std"
	MetricMin    MetricName = "min"
	MetricMax    MetricName = "max"
	MetricP5     MetricName = "p5"
	MetricP25    MetricName = "p25"
	MetricP75    MetricName = "p75"
	MetricP95    MetricName = "p95"
)

// MetricNames lists the vocabulary in reporting order.
var MetricNames = []MetricName{
	MetricMean, MetricMedian, MetricStd, MetricMin, MetricMax,
	MetricP5, MetricP25, MetricP75, MetricP95,
}

var metricQuantiles = map[MetricName]float64{
	MetricMedian: 0.50,
	MetricP5:     0.05,
	MetricP25:    0.25,
	MetricP75:    0.75,
	MetricP95:    0.95,
}

func ParseMetricName(s string) (MetricName, error) {
	m := MetricName(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetricName, s)
	}
	return m, nil
}

func (m MetricName) Valid() bool {
	for _, v := range MetricNames {
		if v == m {
			return true
		}
	}
	return false
}

// Quantile returns the cumulative probability a percentile metric stands for.
func (m MetricName) Quantile() (float64, bool) {
	q, ok := metricQuantiles[m]
	return q, ok
}

func (m MetricName) String() string {
	return string(m)
}

func (m *MetricName) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return fmt.Errorf("error scanning metric name: %w", err)
	}
	parsed, err := ParseMetricName(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m MetricName) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetricName, string(m))
	}
	return string(m), nil
}

// ConflictPolicy decides what a bulk write does with rows whose natural key already exists.
type ConflictPolicy int

const (
	ConflictSkip ConflictPolicy = iota
	ConflictOverwrite
	ConflictFail
)

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return ConflictSkip, nil
	case "overwrite":
		return ConflictOverwrite, nil
	case "fail":
		return ConflictFail, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConflictPolicy, s)
	}
}

func (c ConflictPolicy) String() string {
	switch c {
	case ConflictSkip:
		return "skip"
	case ConflictOverwrite:
		return "overwrite"
	case ConflictFail:
		return "fail"
	default:
		return ""
	}
}

// NormalizeTicker upper-cases and trims a ticker and checks the VARCHAR(10) bound.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("%w: ticker is required", ErrInvalidTicker)
	}
	if utf8.RuneCountInString(t) > MaxTickerLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidTicker, ticker, MaxTickerLength)
	}
	return t, nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
