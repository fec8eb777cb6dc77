package models

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// RawMarketDatum is one OHLCV quote for a ticker at an instant.
type RawMarketDatum struct {
	Id        int32               `db:"id" json:"id"`
	Ticker    string              `db:"ticker" json:"ticker"`
	Timestamp time.Time           `db:"timestamp" json:"timestamp"`
	Open      decimal.NullDecimal `db:"open" json:"open"`
	High      decimal.NullDecimal `db:"high" json:"high"`
	Low       decimal.NullDecimal `db:"low" json:"low"`
	Close     decimal.NullDecimal `db:"close" json:"close"`
	Volume    null.Int            `db:"volume" json:"volume"`
	Vwap      decimal.NullDecimal `db:"vwap" json:"vwap"`
	CreatedAt null.Time           `db:"created_at" json:"createdAt"`
}

// RawMarketDataColumns are the writable columns, in COPY order.
var RawMarketDataColumns = []string{
	"ticker", "timestamp", "open", "high", "low", "close", "volume", "vwap",
}

// RawMarketDataKey is the natural key backing the unique constraint.
var RawMarketDataKey = []string{"ticker", "timestamp"}

// Normalize validates the ticker, moves the timestamp to UTC and fits every
// numeric column to its declared precision.
func (r *RawMarketDatum) Normalize() error {
	ticker, err := NormalizeTicker(r.Ticker)
	if err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("raw quote for %s is missing a timestamp", ticker)
	}

	r.Ticker = ticker
	// postgres keeps microseconds, so keys must collide at that precision too
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Microsecond)

	columns := []string{"open", "high", "low", "close", "vwap"}
	classes := []Numeric{PriceNumeric, PriceNumeric, PriceNumeric, PriceNumeric, PriceNumeric}
	values := []*decimal.NullDecimal{&r.Open, &r.High, &r.Low, &r.Close, &r.Vwap}
	if err := fitColumns(columns, classes, values); err != nil {
		return fmt.Errorf("raw quote %s@%s: %w", ticker, r.Timestamp.Format(time.RFC3339), err)
	}

	return nil
}

// Key identifies the row for in-batch de-duplication.
func (r *RawMarketDatum) Key() string {
	return r.Ticker + "|" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// CopyRow returns the values for RawMarketDataColumns.
func (r *RawMarketDatum) CopyRow() []any {
	return []any{
		r.Ticker, r.Timestamp,
		PgNullNumeric(r.Open), PgNullNumeric(r.High), PgNullNumeric(r.Low), PgNullNumeric(r.Close),
		PgNullInt8(r.Volume), PgNullNumeric(r.Vwap),
	}
}

// ProcessedMarketDatum is one day's engineered feature vector for a ticker.
type ProcessedMarketDatum struct {
	Id     int32     `db:"id" json:"id"`
	Ticker string    `db:"ticker" json:"ticker"`
	Date   time.Time `db:"date" json:"date"`

	Open   decimal.NullDecimal `db:"open" json:"open"`
	High   decimal.NullDecimal `db:"high" json:"high"`
	Low    decimal.NullDecimal `db:"low" json:"low"`
	Close  decimal.NullDecimal `db:"close" json:"close"`
	Volume null.Int            `db:"volume" json:"volume"`
	Vwap   decimal.NullDecimal `db:"vwap" json:"vwap"`

	Year         null.Int `db:"year" json:"year"`
	Month        null.Int `db:"month" json:"month"`
	Day          null.Int `db:"day" json:"day"`
	Weekday      null.Int `db:"weekday" json:"weekday"`
	IsMonthStart null.Int `db:"is_month_start" json:"isMonthStart"`
	IsMonthEnd   null.Int `db:"is_month_end" json:"isMonthEnd"`

	HighLowRange decimal.NullDecimal `db:"high_low_range" json:"highLowRange"`
	AveragePrice decimal.NullDecimal `db:"average_price" json:"averagePrice"`
	VolumeChange decimal.NullDecimal `db:"volume_change" json:"volumeChange"`

	CloseLag1  decimal.NullDecimal `db:"close_lag_1" json:"closeLag1"`
	CloseLag2  decimal.NullDecimal `db:"close_lag_2" json:"closeLag2"`
	Return     decimal.NullDecimal `db:"return" json:"return"`
	ReturnLag1 decimal.NullDecimal `db:"return_lag_1" json:"returnLag1"`

	RollingMean7  decimal.NullDecimal `db:"rolling_mean_7" json:"rollingMean7"`
	RollingStd7   decimal.NullDecimal `db:"rolling_std_7" json:"rollingStd7"`
	RollingMean30 decimal.NullDecimal `db:"rolling_mean_30" json:"rollingMean30"`
	RollingStd30  decimal.NullDecimal `db:"rolling_std_30" json:"rollingStd30"`

	Ma14  decimal.NullDecimal `db:"ma14" json:"ma14"`
	Ma30  decimal.NullDecimal `db:"ma30" json:"ma30"`
	Ma50  decimal.NullDecimal `db:"ma50" json:"ma50"`
	Ma200 decimal.NullDecimal `db:"ma200" json:"ma200"`

	Rsi14 decimal.NullDecimal `db:"rsi14" json:"rsi14"`
	Rsi30 decimal.NullDecimal `db:"rsi30" json:"rsi30"`
	Rsi50 decimal.NullDecimal `db:"rsi50" json:"rsi50"`

	Roc14 decimal.NullDecimal `db:"roc14" json:"roc14"`
	Vol14 decimal.NullDecimal `db:"vol14" json:"vol14"`

	UpDay   null.Int `db:"up_day" json:"upDay"`
	DownDay null.Int `db:"down_day" json:"downDay"`
}

// ProcessedMarketDataColumns are the writable columns, in COPY order.
var ProcessedMarketDataColumns = []string{
	"ticker", "date", "open", "high", "low", "close", "volume", "vwap",
	"year", "month", "day", "weekday", "is_month_start", "is_month_end",
	"high_low_range", "average_price", "volume_change",
	"close_lag_1", "close_lag_2", "return", "return_lag_1",
	"rolling_mean_7", "rolling_std_7", "rolling_mean_30", "rolling_std_30",
	"ma14", "ma30", "ma50", "ma200",
	"rsi14", "rsi30", "rsi50",
	"roc14", "vol14",
	"up_day", "down_day",
}

var ProcessedMarketDataKey = []string{"ticker", "date"}

func (p *ProcessedMarketDatum) numericColumns() ([]string, []Numeric, []*decimal.NullDecimal) {
	columns := []string{
		"open", "high", "low", "close", "vwap",
		"high_low_range", "average_price", "volume_change",
		"close_lag_1", "close_lag_2", "return", "return_lag_1",
		"rolling_mean_7", "rolling_std_7", "rolling_mean_30", "rolling_std_30",
		"ma14", "ma30", "ma50", "ma200",
		"rsi14", "rsi30", "rsi50",
		"roc14", "vol14",
	}
	classes := []Numeric{
		PriceNumeric, PriceNumeric, PriceNumeric, PriceNumeric, PriceNumeric,
		PriceNumeric, PriceNumeric, RatioNumeric,
		PriceNumeric, PriceNumeric, RatioNumeric, RatioNumeric,
		PriceNumeric, PriceNumeric, PriceNumeric, PriceNumeric,
		RatioNumeric, RatioNumeric, RatioNumeric, RatioNumeric,
		OscillatorNumeric, OscillatorNumeric, OscillatorNumeric,
		RatioNumeric, RatioNumeric,
	}
	values := []*decimal.NullDecimal{
		&p.Open, &p.High, &p.Low, &p.Close, &p.Vwap,
		&p.HighLowRange, &p.AveragePrice, &p.VolumeChange,
		&p.CloseLag1, &p.CloseLag2, &p.Return, &p.ReturnLag1,
		&p.RollingMean7, &p.RollingStd7, &p.RollingMean30, &p.RollingStd30,
		&p.Ma14, &p.Ma30, &p.Ma50, &p.Ma200,
		&p.Rsi14, &p.Rsi30, &p.Rsi50,
		&p.Roc14, &p.Vol14,
	}
	return columns, classes, values
}

// Normalize validates the ticker, truncates the date to a calendar day, checks the
// calendar and flag columns and fits every numeric column to its declared precision.
func (p *ProcessedMarketDatum) Normalize() error {
	ticker, err := NormalizeTicker(p.Ticker)
	if err != nil {
		return err
	}
	if p.Date.IsZero() {
		return fmt.Errorf("processed row for %s is missing a date", ticker)
	}

	p.Ticker = ticker
	p.Date = time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
	at := p.Date.Format(time.DateOnly)

	ranges := []struct {
		column   string
		value    null.Int
		min, max int64
	}{
		{"month", p.Month, 1, 12},
		{"day", p.Day, 1, 31},
		{"weekday", p.Weekday, 0, 6},
		{"is_month_start", p.IsMonthStart, 0, 1},
		{"is_month_end", p.IsMonthEnd, 0, 1},
		{"up_day", p.UpDay, 0, 1},
		{"down_day", p.DownDay, 0, 1},
	}
	for _, r := range ranges {
		if v := r.value.ValueOrZero(); r.value.Valid && (v < r.min || v > r.max) {
			return fmt.Errorf("processed row %s@%s: column %s out of range [%d, %d]: %d", ticker, at, r.column, r.min, r.max, v)
		}
	}

	columns, classes, values := p.numericColumns()
	if err := fitColumns(columns, classes, values); err != nil {
		return fmt.Errorf("processed row %s@%s: %w", ticker, at, err)
	}

	return nil
}

func (p *ProcessedMarketDatum) Key() string {
	return p.Ticker + "|" + p.Date.Format(time.DateOnly)
}

// CopyRow returns the values for ProcessedMarketDataColumns.
func (p *ProcessedMarketDatum) CopyRow() []any {
	return []any{
		p.Ticker, pgtype.Date{Time: p.Date, Valid: true},
		PgNullNumeric(p.Open), PgNullNumeric(p.High), PgNullNumeric(p.Low), PgNullNumeric(p.Close),
		PgNullInt8(p.Volume), PgNullNumeric(p.Vwap),
		PgNullInt4(p.Year), PgNullInt4(p.Month), PgNullInt4(p.Day), PgNullInt4(p.Weekday),
		PgNullInt4(p.IsMonthStart), PgNullInt4(p.IsMonthEnd),
		PgNullNumeric(p.HighLowRange), PgNullNumeric(p.AveragePrice), PgNullNumeric(p.VolumeChange),
		PgNullNumeric(p.CloseLag1), PgNullNumeric(p.CloseLag2), PgNullNumeric(p.Return), PgNullNumeric(p.ReturnLag1),
		PgNullNumeric(p.RollingMean7), PgNullNumeric(p.RollingStd7), PgNullNumeric(p.RollingMean30), PgNullNumeric(p.RollingStd30),
		PgNullNumeric(p.Ma14), PgNullNumeric(p.Ma30), PgNullNumeric(p.Ma50), PgNullNumeric(p.Ma200),
		PgNullNumeric(p.Rsi14), PgNullNumeric(p.Rsi30), PgNullNumeric(p.Rsi50),
		PgNullNumeric(p.Roc14), PgNullNumeric(p.Vol14),
		PgNullInt4(p.UpDay), PgNullInt4(p.DownDay),
	}
}

// DailyReturn is the slice of a processed row a simulation driver reads back.
type DailyReturn struct {
	Date   time.Time           `db:"date"`
	Close  decimal.NullDecimal `db:"close"`
	Return decimal.NullDecimal `db:"return"`
}

func PgNullInt8(v null.Int) pgtype.Int8 {
	return pgtype.Int8{Int64: v.ValueOrZero(), Valid: v.Valid}
}

func PgNullInt4(v null.Int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(v.ValueOrZero()), Valid: v.Valid}
}
