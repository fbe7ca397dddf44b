// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"math"
	"time"
)

// pct is the one percentage formula for the whole dashboard:
// count/total*100, clamped to [0,100], rounded to one decimal. A zero
// total yields 0 rather than NaN.
func pct(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	v := float64(count) / float64(total) * 100
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return round1(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func avg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// The helpers below coerce database/sql's generic scan values. DuckDB
// hands back a mix of int32/int64/float64 depending on column type.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int32:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}
