package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// Config holds quality gate thresholds
type Config struct {
	MinVolumeCoverage float64 `yaml:"min_volume_coverage"` // 0.95
	MinRangeCoverage  float64 `yaml:"min_range_coverage"`  // 0.99
	MaxGapDays        int     `yaml:"max_gap_days"`        // 15 (calendar days between bars)
	MinGapCoverage    float64 `yaml:"min_gap_coverage"`    // 0.99
}

// DefaultConfig returns lenient thresholds for daily equity bars
func DefaultConfig() Config {
	return Config{
		MinVolumeCoverage: 0.95,
		MinRangeCoverage:  0.99,
		MaxGapDays:        15,
		MinGapCoverage:    0.99,
	}
}

// Snapshot is the quality result of one bar series
type Snapshot struct {
	Code         string             `json:"code"`
	Bars         int                `json:"bars"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// Warning joins all warnings into one line ("" when clean)
func (s *Snapshot) Warning() string {
	return strings.Join(s.Warnings, "; ")
}

// QualityGate inspects loaded series before analysis.
// 경고만 생성하며 분석을 막지 않음
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check validates one series
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(s *contracts.BarSeries) *Snapshot {
	snapshot := &Snapshot{
		Code:     s.Code,
		Bars:     s.Len(),
		Coverage: make(map[string]float64),
	}
	if s.Len() == 0 {
		return snapshot
	}

	// 1. 거래량 (0 거래량 = 거래정지일)
	if s.Fields.Has(contracts.FieldVolume) {
		cov := g.checkVolumeCoverage(s)
		snapshot.Coverage["volume"] = cov
		if cov < g.config.MinVolumeCoverage {
			snapshot.Warnings = append(snapshot.Warnings,
				fmt.Sprintf("volume coverage %.2f%% below %.2f%%", cov*100, g.config.MinVolumeCoverage*100))
		}
	}

	// 2. 고가/저가 정합성
	if s.Fields.Has(contracts.FieldHigh) && s.Fields.Has(contracts.FieldLow) {
		cov := g.checkRangeCoverage(s)
		snapshot.Coverage["range"] = cov
		if cov < g.config.MinRangeCoverage {
			snapshot.Warnings = append(snapshot.Warnings,
				fmt.Sprintf("high/low consistent on %.2f%% of bars", cov*100))
		}
	}

	// 3. 날짜 간격
	cov := g.checkGapCoverage(s)
	snapshot.Coverage["calendar"] = cov
	if cov < g.config.MinGapCoverage {
		snapshot.Warnings = append(snapshot.Warnings,
			fmt.Sprintf("%.2f%% of bar gaps exceed %d days", (1-cov)*100, g.config.MaxGapDays))
	}

	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	return snapshot
}

func (g *QualityGate) checkVolumeCoverage(s *contracts.BarSeries) float64 {
	traded := 0
	for _, v := range s.Volumes() {
		if v > 0 {
			traded++
		}
	}
	return float64(traded) / float64(s.Len())
}

func (g *QualityGate) checkRangeCoverage(s *contracts.BarSeries) float64 {
	ok := 0
	for i := 0; i < s.Len(); i++ {
		b := s.At(i)
		if b.High >= math.Max(b.Open, b.Close) && b.Low <= math.Min(b.Open, b.Close) && b.Low > 0 {
			ok++
		}
	}
	return float64(ok) / float64(s.Len())
}

func (g *QualityGate) checkGapCoverage(s *contracts.BarSeries) float64 {
	if s.Len() < 2 {
		return 1
	}
	maxGap := float64(g.config.MaxGapDays) * 24
	ok := 0
	for i := 1; i < s.Len(); i++ {
		if s.At(i).Date.Sub(s.At(i-1).Date).Hours() <= maxGap {
			ok++
		}
	}
	return float64(ok) / float64(s.Len()-1)
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	// 가중치 (존재하는 항목만 정규화)
	weights := map[string]float64{
		"volume":   0.40,
		"range":    0.40,
		"calendar": 0.20,
	}

	score, total := 0.0, 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
			total += weight
		}
	}
	if total == 0 {
		return 0
	}
	return score / total
}
