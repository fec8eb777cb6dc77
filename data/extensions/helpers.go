package extensions

import (
	"time"
)

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// FilterMultiple return all elements that satisfy the predicate
func FilterMultiple[T any](elements []T, predicate func(T) bool) (results []T) {
	for _, element := range elements {
		if predicate(element) {
			results = append(results, element)
		}
	}
	return
}

// UniqueBy keeps the first element for every key, preserving order
func UniqueBy[T any, K comparable](elements []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(elements))
	results := make([]T, 0, len(elements))
	for _, element := range elements {
		k := key(element)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		results = append(results, element)
	}
	return results
}

// GroupBy buckets elements by key, preserving order inside each bucket
func GroupBy[T any, K comparable](elements []T, key func(T) K) map[K][]T {
	results := make(map[K][]T)
	for _, element := range elements {
		k := key(element)
		results[k] = append(results[k], element)
	}
	return results
}

// FmtShort formats a time in a date only string
func FmtShort(t time.Time) string {
	return t.Format(time.DateOnly)
}

// FmtLong formats a time to a full date string
func FmtLong(t time.Time) string {
	return t.Format(time.RFC3339)
}

func Min[T Number](a, b T) T {
	if a < b {
		return a
	}
	return b
}
