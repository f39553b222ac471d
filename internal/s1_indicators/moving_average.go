package s1_indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMA returns the exponential moving average with α = 2/(span+1).
// 첫 값은 입력 첫 값 그대로 시드, 이후 α·x + (1-α)·prev (bias 보정 없음).
// talib.Ema 는 SMA 로 시드하므로 사용하지 않음
func EMA(values []float64, span int) Series {
	out := Undefined(len(values))
	if span < 1 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()
	for i, x := range values {
		switch {
		case math.IsNaN(x):
			// carry the last value forward; a leading gap stays undefined
			out[i] = prev
		case math.IsNaN(prev):
			prev = x
			out[i] = x
		default:
			prev = alpha*x + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}

// SMA returns the trailing simple moving average over window observations.
// Positions 0..window-2 are undefined; a series shorter than window is all undefined.
func SMA(values []float64, window int) Series {
	if window < 1 || len(values) < window {
		return Undefined(len(values))
	}

	out := Series(talib.Sma(values, window))
	// talib 은 warm-up 구간을 0 으로 채움
	for i := 0; i < window-1; i++ {
		out[i] = math.NaN()
	}
	return out
}
