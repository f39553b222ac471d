package s1_indicators

import "fmt"

// MACDParams holds the EMA spans
type MACDParams struct {
	Fast   int `yaml:"fast" json:"fast"`
	Slow   int `yaml:"slow" json:"slow"`
	Signal int `yaml:"signal" json:"signal"`
}

// DefaultMACDParams returns the conventional 12/26/9 spans
func DefaultMACDParams() MACDParams {
	return MACDParams{Fast: 12, Slow: 26, Signal: 9}
}

// Validate checks span ordering
func (p MACDParams) Validate() error {
	if p.Fast < 1 || p.Slow < 1 || p.Signal < 1 {
		return fmt.Errorf("macd spans must be >= 1 (fast=%d slow=%d signal=%d)", p.Fast, p.Slow, p.Signal)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("macd fast span %d must be < slow span %d", p.Fast, p.Slow)
	}
	return nil
}

// MACDResult holds the two MACD lines, both aligned with the input
type MACDResult struct {
	DIF Series
	DEA Series
}

// MACD computes DIF = EMA(fast) - EMA(slow) and DEA = EMA(DIF, signal)
func MACD(closes []float64, p MACDParams) MACDResult {
	fast := EMA(closes, p.Fast)
	slow := EMA(closes, p.Slow)

	dif := make(Series, len(closes))
	for i := range dif {
		dif[i] = fast[i] - slow[i]
	}

	return MACDResult{
		DIF: dif,
		DEA: EMA(dif, p.Signal),
	}
}
