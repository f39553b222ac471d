package s1_indicators

import "math"

// Series is an indicator output aligned 1:1 with the bar index.
// 값이 없는 위치는 NaN (0 으로 채우지 않음). NaN 과의 비교는 항상 false
type Series []float64

// Undefined returns a series of n undefined positions
func Undefined(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Defined reports whether i is in range and holds a value
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// Shift returns the view out[i] = values[i-k]. Positions whose source index
// falls outside the input are undefined. k may be negative (look-ahead).
func Shift(values []float64, k int) Series {
	out := Undefined(len(values))
	for i := range out {
		j := i - k
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}
