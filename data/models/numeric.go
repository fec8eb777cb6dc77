package models

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var ErrNumericOverflow = errors.New("numeric field overflow")

// Numeric mirrors a NUMERIC(precision, scale) column declaration.
type Numeric struct {
	Precision int32
	Scale     int32
}

var (
	PriceNumeric      = Numeric{Precision: 15, Scale: 4}
	RatioNumeric      = Numeric{Precision: 15, Scale: 8}
	OscillatorNumeric = Numeric{Precision: 10, Scale: 4}
	MoneyNumeric      = Numeric{Precision: 15, Scale: 2}
	PercentNumeric    = Numeric{Precision: 10, Scale: 4}
)

func (n Numeric) String() string {
	return fmt.Sprintf("NUMERIC(%d,%d)", n.Precision, n.Scale)
}

// Fit rounds d to the column scale the same way postgres does and rejects values
// whose integer part does not fit in Precision-Scale digits.
func (n Numeric) Fit(d decimal.Decimal) (decimal.Decimal, error) {
	r := d.Round(n.Scale)
	limit := decimal.New(1, n.Precision-n.Scale)
	if r.Abs().GreaterThanOrEqual(limit) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s does not fit %s", ErrNumericOverflow, d.String(), n)
	}
	return r, nil
}

func (n Numeric) FitNull(d decimal.NullDecimal) (decimal.NullDecimal, error) {
	if !d.Valid {
		return d, nil
	}
	r, err := n.Fit(d.Decimal)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(r), nil
}

// fitColumns applies each class to its field, naming the column on failure.
func fitColumns(columns []string, classes []Numeric, values []*decimal.NullDecimal) error {
	for i, v := range values {
		r, err := classes[i].FitNull(*v)
		if err != nil {
			return fmt.Errorf("column %s: %w", columns[i], err)
		}
		*v = r
	}
	return nil
}

// PgNumeric converts a decimal into the pgtype value used for binary COPY.
func PgNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		// decimal.String always yields a parseable literal
		panic(fmt.Errorf("error converting %s to numeric: %w", d.String(), err))
	}
	return n
}

func PgNullNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return PgNumeric(d.Decimal)
}
