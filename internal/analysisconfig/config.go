package analysisconfig

import (
	"github.com/wonny/aegis-signals/internal/s0_data/quality"
	ind "github.com/wonny/aegis-signals/internal/s1_indicators"
	"github.com/wonny/aegis-signals/internal/s2_signals"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
)

// Config는 시그널 분석 실행의 전체 설정
type Config struct {
	StockCodes []string   `yaml:"stock_codes" json:"stock_codes"`
	DataDir    string     `yaml:"data_dir" json:"data_dir"`
	OutputDir  string     `yaml:"output_dir" json:"output_dir"`
	Signals    []string   `yaml:"signals" json:"signals"` // 비어 있으면 전체 카탈로그
	Backtest   Backtest   `yaml:"backtest" json:"backtest"`
	Indicators Indicators `yaml:"indicators" json:"indicators"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Quality    Quality    `yaml:"quality" json:"quality"`
	MinBars    int        `yaml:"min_bars" json:"min_bars"`

	// 다운로드 스크립트와 같은 config.json 을 공유할 때의 키 (분석에는 사용하지 않음)
	Download Download `yaml:",inline" json:"-"`
}

// Backtest 매매 규칙
type Backtest struct {
	Horizon int `yaml:"horizon" json:"horizon"`
}

// Indicators 지표 파라미터
type Indicators struct {
	MACD ind.MACDParams `yaml:"macd" json:"macd"`
}

// Thresholds 패턴 임계값
type Thresholds struct {
	DojiRatio      float64 `yaml:"doji_ratio" json:"doji_ratio"`
	DojiEpsilon    float64 `yaml:"doji_epsilon" json:"doji_epsilon"`
	BreakoutWindow int     `yaml:"breakout_window" json:"breakout_window"`
	BreakoutGain   float64 `yaml:"breakout_gain" json:"breakout_gain"`
	GapBody        float64 `yaml:"gap_body" json:"gap_body"`
	FlankBody      float64 `yaml:"flank_body" json:"flank_body"`
}

// Quality 시리즈 품질 경고 임계값
type Quality struct {
	MinVolumeCoverage float64 `yaml:"min_volume_coverage" json:"min_volume_coverage"`
	MinRangeCoverage  float64 `yaml:"min_range_coverage" json:"min_range_coverage"`
	MaxGapDays        int     `yaml:"max_gap_days" json:"max_gap_days"`
	MinGapCoverage    float64 `yaml:"min_gap_coverage" json:"min_gap_coverage"`
}

// Download keys tolerated in a shared config.json
type Download struct {
	SavePath   string `yaml:"save_path,omitempty"`
	Period     string `yaml:"period,omitempty"`
	StartDate  string `yaml:"start_date,omitempty"`
	EndDate    string `yaml:"end_date,omitempty"`
	AdjustType string `yaml:"adjust_type,omitempty"`
}

// Present reports whether any download key was set
func (d Download) Present() bool {
	return d != Download{}
}

// Default returns the reference configuration
func Default() *Config {
	p := s2_signals.DefaultParams()
	q := quality.DefaultConfig()
	return &Config{
		DataDir:    "data",
		OutputDir:  "reports",
		Backtest:   Backtest{Horizon: s3_backtest.DefaultConfig().Horizon},
		Indicators: Indicators{MACD: p.MACD},
		Thresholds: Thresholds{
			DojiRatio:      p.DojiRatio,
			DojiEpsilon:    p.DojiEpsilon,
			BreakoutWindow: p.BreakoutWindow,
			BreakoutGain:   p.BreakoutGain,
			GapBody:        p.GapBody,
			FlankBody:      p.FlankBody,
		},
		Quality: Quality{
			MinVolumeCoverage: q.MinVolumeCoverage,
			MinRangeCoverage:  q.MinRangeCoverage,
			MaxGapDays:        q.MaxGapDays,
			MinGapCoverage:    q.MinGapCoverage,
		},
		MinBars: 3,
	}
}

// SignalParams converts thresholds into detector params
func (c *Config) SignalParams() s2_signals.Params {
	return s2_signals.Params{
		MACD:           c.Indicators.MACD,
		DojiRatio:      c.Thresholds.DojiRatio,
		DojiEpsilon:    c.Thresholds.DojiEpsilon,
		BreakoutWindow: c.Thresholds.BreakoutWindow,
		BreakoutGain:   c.Thresholds.BreakoutGain,
		GapBody:        c.Thresholds.GapBody,
		FlankBody:      c.Thresholds.FlankBody,
	}
}

// BacktestConfig converts the trade rule section
func (c *Config) BacktestConfig() s3_backtest.Config {
	return s3_backtest.Config{Horizon: c.Backtest.Horizon}
}

// QualityConfig converts the quality section
func (c *Config) QualityConfig() quality.Config {
	return quality.Config{
		MinVolumeCoverage: c.Quality.MinVolumeCoverage,
		MinRangeCoverage:  c.Quality.MinRangeCoverage,
		MaxGapDays:        c.Quality.MaxGapDays,
		MinGapCoverage:    c.Quality.MinGapCoverage,
	}
}

// Catalogue returns the configured signal subset in report order
func (c *Config) Catalogue() (s2_signals.Catalogue, error) {
	return s2_signals.DefaultCatalogue().Select(c.Signals)
}
