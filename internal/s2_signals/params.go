package s2_signals

import (
	"fmt"

	ind "github.com/wonny/aegis-signals/internal/s1_indicators"
)

// Params holds every predicate threshold. Passed explicitly to each detector.
type Params struct {
	MACD           ind.MACDParams
	DojiRatio      float64 // 早晨之星: |body| / range 상한
	DojiEpsilon    float64 // range 0 방지
	BreakoutWindow int     // 出水芙蓉: MA 기간
	BreakoutGain   float64 // 出水芙蓉: 당일 close/open-1 하한
	GapBody        float64 // 旭日东升: 전일 음봉 몸통 하한
	FlankBody      float64 // 多方炮: 가운데 음봉 몸통 상한
}

// DefaultParams returns the reference thresholds
func DefaultParams() Params {
	return Params{
		MACD:           ind.DefaultMACDParams(),
		DojiRatio:      0.10,
		DojiEpsilon:    1e-5,
		BreakoutWindow: 30,
		BreakoutGain:   0.05,
		GapBody:        0.03,
		FlankBody:      0.03,
	}
}

// Validate rejects thresholds that make a predicate meaningless
func (p Params) Validate() error {
	if err := p.MACD.Validate(); err != nil {
		return err
	}
	if p.DojiRatio <= 0 {
		return fmt.Errorf("doji ratio must be > 0, got %v", p.DojiRatio)
	}
	if p.DojiEpsilon <= 0 {
		return fmt.Errorf("doji epsilon must be > 0, got %v", p.DojiEpsilon)
	}
	if p.BreakoutWindow < 2 {
		return fmt.Errorf("breakout window must be >= 2, got %d", p.BreakoutWindow)
	}
	if p.BreakoutGain <= 0 || p.GapBody <= 0 || p.FlankBody <= 0 {
		return fmt.Errorf("breakout gain, gap body and flank body must be > 0")
	}
	return nil
}
