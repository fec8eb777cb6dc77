package extensions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_UniqueBy_KeepsFirst(t *testing.T) {
	type row struct {
		key   string
		value int
	}
	rows := []row{{"a", 1}, {"b", 2}, {"a", 3}, {"c", 4}, {"b", 5}}

	got := UniqueBy(rows, func(r row) string { return r.key })

	assert.Equal(t, []row{{"a", 1}, {"b", 2}, {"c", 4}}, got)
}

func Test_GroupBy(t *testing.T) {
	got := GroupBy([]int{1, 2, 3, 4, 5}, func(i int) bool { return i%2 == 0 })

	assert.Equal(t, []int{2, 4}, got[true])
	assert.Equal(t, []int{1, 3, 5}, got[false])
}

func Test_FilterMultiple(t *testing.T) {
	got := FilterMultiple([]string{"AAPL", "", "MSFT"}, func(s string) bool { return s != "" })
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	assert.Nil(t, FilterMultiple([]int{1, 2}, func(int) bool { return false }))
}

func Test_Min(t *testing.T) {
	assert.Equal(t, 2, Min(2, 3))
	assert.Equal(t, int32(-1), Min(int32(4), int32(-1)))
}

func Test_Formatters(t *testing.T) {
	ts := time.Date(2025, time.October, 31, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, "2025-10-31", FmtShort(ts))
	assert.Equal(t, "2025-10-31T13:45:00Z", FmtLong(ts))
}
