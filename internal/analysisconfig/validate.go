package analysisconfig

import (
	"fmt"

	"github.com/wonny/aegis-signals/internal/s2_signals"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Paths ===
	if cfg.OutputDir == "" {
		return ValidationError{"output_dir", "required"}
	}

	// === Signals ===
	cat := s2_signals.DefaultCatalogue()
	seen := make(map[string]bool, len(cfg.Signals))
	for _, code := range cfg.Signals {
		if _, ok := cat.Lookup(code); !ok {
			return ValidationError{"signals", fmt.Sprintf("unknown signal %q (known: %v)", code, cat.Codes())}
		}
		if seen[code] {
			return ValidationError{"signals", fmt.Sprintf("duplicate signal %q", code)}
		}
		seen[code] = true
	}

	// === Backtest ===
	if cfg.Backtest.Horizon < 1 {
		return ValidationError{"backtest.horizon", "must be >= 1"}
	}

	// === Indicators ===
	m := cfg.Indicators.MACD
	if m.Fast < 1 || m.Slow < 1 || m.Signal < 1 {
		return ValidationError{"indicators.macd", "spans must be >= 1"}
	}
	if m.Fast >= m.Slow {
		return ValidationError{"indicators.macd", "fast must be < slow"}
	}

	// === Thresholds ===
	th := cfg.Thresholds
	positive := []struct {
		field string
		value float64
	}{
		{"thresholds.doji_ratio", th.DojiRatio},
		{"thresholds.doji_epsilon", th.DojiEpsilon},
		{"thresholds.breakout_gain", th.BreakoutGain},
		{"thresholds.gap_body", th.GapBody},
		{"thresholds.flank_body", th.FlankBody},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return ValidationError{p.field, "must be > 0"}
		}
	}
	if th.BreakoutWindow < 2 {
		return ValidationError{"thresholds.breakout_window", "must be >= 2"}
	}

	// === Quality ===
	for field, pct := range map[string]float64{
		"quality.min_volume_coverage": cfg.Quality.MinVolumeCoverage,
		"quality.min_range_coverage":  cfg.Quality.MinRangeCoverage,
		"quality.min_gap_coverage":    cfg.Quality.MinGapCoverage,
	} {
		if err := validatePctRange(pct, field); err != nil {
			return err
		}
	}
	if cfg.Quality.MaxGapDays < 1 {
		return ValidationError{"quality.max_gap_days", "must be >= 1"}
	}

	if cfg.MinBars < 0 {
		return ValidationError{"min_bars", "must be >= 0"}
	}

	return nil
}

// Warn returns non-fatal recommendations
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.StockCodes) == 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_UNIVERSE",
			Message: "stock_codes 비어 있음: 데이터 소스의 전체 종목을 분석",
		})
	}

	if cfg.Backtest.Horizon != 5 {
		warnings = append(warnings, Warning{
			Code:    "NON_STANDARD_HORIZON",
			Message: fmt.Sprintf("horizon=%d: 리포트 라벨이 平均%d日收益 로 바뀜", cfg.Backtest.Horizon, cfg.Backtest.Horizon),
		})
	}

	if cfg.MinBars < 3 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_BARS",
			Message: "min_bars < 3: 3봉 패턴은 항상 0건",
		})
	}

	if cfg.Download.Present() {
		warnings = append(warnings, Warning{
			Code:    "DOWNLOAD_KEYS_IGNORED",
			Message: "save_path/period/start_date/end_date/adjust_type 는 분석에서 사용하지 않음",
		})
	}

	return warnings
}

// validatePctRange는 퍼센트 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
