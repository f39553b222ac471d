package s2_signals

import (
	"math"

	ind "github.com/wonny/aegis-signals/internal/s1_indicators"
)

// Elementwise helpers over index-aligned series.
// 모든 비교는 같은 인덱스끼리만 수행하고, NaN(범위 밖/미정의)이 끼면 false

type vec = ind.Series

func col(values []float64) vec {
	return vec(values)
}

func shift(values vec, k int) vec {
	return ind.Shift(values, k)
}

func zip(a, b vec, fn func(x, y float64) float64) vec {
	out := make(vec, len(a))
	for i := range a {
		out[i] = fn(a[i], b[i])
	}
	return out
}

func sub(a, b vec) vec { return zip(a, b, func(x, y float64) float64 { return x - y }) }
func add(a, b vec) vec { return zip(a, b, func(x, y float64) float64 { return x + y }) }
func div(a, b vec) vec { return zip(a, b, func(x, y float64) float64 { return x / y }) }

func scale(a vec, c float64) vec {
	out := make(vec, len(a))
	for i := range a {
		out[i] = a[i] * c
	}
	return out
}

func addConst(a vec, c float64) vec {
	out := make(vec, len(a))
	for i := range a {
		out[i] = a[i] + c
	}
	return out
}

func abs(a vec) vec {
	out := make(vec, len(a))
	for i := range a {
		out[i] = math.Abs(a[i])
	}
	return out
}

func cmp(a, b vec, fn func(x, y float64) bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = fn(a[i], b[i])
	}
	return out
}

func gt(a, b vec) []bool { return cmp(a, b, func(x, y float64) bool { return x > y }) }
func lt(a, b vec) []bool { return cmp(a, b, func(x, y float64) bool { return x < y }) }
func le(a, b vec) []bool { return cmp(a, b, func(x, y float64) bool { return x <= y }) }

func cmpConst(a vec, c float64, fn func(x, y float64) bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = fn(a[i], c)
	}
	return out
}

func gtConst(a vec, c float64) []bool { return cmpConst(a, c, func(x, y float64) bool { return x > y }) }
func ltConst(a vec, c float64) []bool { return cmpConst(a, c, func(x, y float64) bool { return x < y }) }
func geConst(a vec, c float64) []bool { return cmpConst(a, c, func(x, y float64) bool { return x >= y }) }

// and combines masks of equal length
func and(masks ...[]bool) []bool {
	if len(masks) == 0 {
		return nil
	}
	out := make([]bool, len(masks[0]))
	for i := range out {
		v := true
		for _, m := range masks {
			if !m[i] {
				v = false
				break
			}
		}
		out[i] = v
	}
	return out
}
