package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	nullIntType     = reflect.TypeOf(null.Int{})
)

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// cellHook turns CSV text into the column types the models use. Empty cells
// become NULL.
func cellHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)

	switch to {
	case timeType:
		if s == "" {
			return time.Time{}, nil
		}
		return parseTime(s)
	case nullDecimalType:
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return decimal.NewNullDecimal(d), nil
	case nullIntType:
		if s == "" {
			return null.Int{}, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return null.IntFrom(i), nil
	}

	return data, nil
}

// DecodeCSV reads rows into T, matching header names to db tags. A header
// that names no column is an error.
func DecodeCSV[T any](r io.Reader) ([]*T, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var res []*T
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv line %d: %w", line, err)
		}

		row := make(map[string]any, len(header))
		for i, h := range header {
			row[h] = strings.TrimSpace(record[i])
		}

		out := new(T)
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "db",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			DecodeHook:       mapstructure.DecodeHookFuncType(cellHook),
			Result:           out,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		res = append(res, out)
	}

	return res, nil
}
