package s2_signals

import (
	"github.com/wonny/aegis-signals/internal/contracts"
	ind "github.com/wonny/aegis-signals/internal/s1_indicators"
)

// Each detector returns one flag per bar. Offsets are fixed per pattern
// (1, 2 or the MA window) and applied to whole columns at once.

// detectMACDGoldenCross: DIF 가 DEA 를 아래에서 위로 돌파
// DIF[i] > DEA[i] && DIF[i-1] <= DEA[i-1]
func detectMACDGoldenCross(s *contracts.BarSeries, p Params) []bool {
	m := ind.MACD(s.Closes(), p.MACD)

	return and(
		gt(m.DIF, m.DEA),
		le(shift(m.DIF, 1), shift(m.DEA, 1)),
	)
}

// detectMorningStar: 음봉 → 십자별 → 첫날 몸통 중간 위로 마감하는 양봉
func detectMorningStar(s *contracts.BarSeries, p Params) []bool {
	o, h, l, c := col(s.Opens()), col(s.Highs()), col(s.Lows()), col(s.Closes())

	day1Bearish := lt(shift(c, 2), shift(o, 2))

	body := abs(sub(shift(c, 1), shift(o, 1)))
	spread := addConst(sub(shift(h, 1), shift(l, 1)), p.DojiEpsilon)
	day2Doji := ltConst(div(body, spread), p.DojiRatio)

	day1Mid := scale(add(shift(o, 2), shift(c, 2)), 0.5)
	day3 := and(gt(c, o), gt(c, day1Mid))

	return and(day1Bearish, day2Doji, day3)
}

// detectThreeRisingSuns (三阳开泰): 연속 양봉 3개, 종가 순증가
func detectThreeRisingSuns(s *contracts.BarSeries, p Params) []bool {
	o, c := col(s.Opens()), col(s.Closes())
	o1, c1 := shift(o, 1), shift(c, 1)
	o2, c2 := shift(o, 2), shift(c, 2)

	return and(
		gt(c, o),
		gt(c1, o1), gt(c, c1),
		gt(c2, o2), gt(c1, c2),
	)
}

// detectBreakoutMA (出水芙蓉): 종가가 MA 상향 돌파 + 당일 상승폭 + 직전 MA 거래량 초과
func detectBreakoutMA(s *contracts.BarSeries, p Params) []bool {
	o, c, v := col(s.Opens()), col(s.Closes()), col(s.Volumes())

	ma := ind.SMA(c, p.BreakoutWindow)
	cross := and(gt(c, ma), le(shift(c, 1), shift(ma, 1)))

	gain := geConst(addConst(div(c, o), -1), p.BreakoutGain)

	// 거래량 기준은 어제까지의 평균 (오늘 제외)
	prevVolMA := shift(ind.SMA(v, p.BreakoutWindow), 1)
	volume := gt(v, prevVolMA)

	return and(cross, gain, volume)
}

// detectSunriseGap (旭日东升): 큰 음봉 다음날 갭하락 시가, 전일 시가 위 종가
func detectSunriseGap(s *contracts.BarSeries, p Params) []bool {
	o, c := col(s.Opens()), col(s.Closes())
	o1, c1 := shift(o, 1), shift(c, 1)

	day1 := and(lt(c1, o1), gtConst(div(sub(o1, c1), o1), p.GapBody))

	return and(day1, lt(o, c1), gt(c, o1))
}

// detectTwoBullsFlankBear (多方炮): 양봉-작은 음봉-양봉, 셋째날 종가 > 첫째날 종가
func detectTwoBullsFlankBear(s *contracts.BarSeries, p Params) []bool {
	o, c := col(s.Opens()), col(s.Closes())
	o1, c1 := shift(o, 1), shift(c, 1)
	o2, c2 := shift(o, 2), shift(c, 2)

	day1 := gt(c2, o2)
	day2 := and(lt(c1, o1), ltConst(div(sub(o1, c1), o1), p.FlankBody))
	day3 := and(gt(c, o), gt(c, c2))

	return and(day1, day2, day3)
}
