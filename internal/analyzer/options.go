package analyzer

import (
	"fmt"

	"github.com/wonny/aegis-signals/internal/analysisconfig"
	"github.com/wonny/aegis-signals/internal/s0_data/quality"
	"github.com/wonny/aegis-signals/internal/s2_signals"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
)

// Options holds everything one analysis run needs. Passed explicitly, no globals.
type Options struct {
	Catalogue  s2_signals.Catalogue
	Params     s2_signals.Params
	Backtest   s3_backtest.Config
	Quality    quality.Config
	MinBars    int
	Workers    int
	LoadRate   float64 // series loads per second (0 = unlimited)
	ConfigHash string
}

// DefaultOptions returns the reference options with the full catalogue
func DefaultOptions() Options {
	return Options{
		Catalogue: s2_signals.DefaultCatalogue(),
		Params:    s2_signals.DefaultParams(),
		Backtest:  s3_backtest.DefaultConfig(),
		Quality:   quality.DefaultConfig(),
		MinBars:   3,
		Workers:   4,
	}
}

// OptionsFromConfig builds options from a validated analysis config
func OptionsFromConfig(cfg *analysisconfig.Config, workers int, loadRate float64) (Options, error) {
	cat, err := cfg.Catalogue()
	if err != nil {
		return Options{}, fmt.Errorf("select signals: %w", err)
	}

	hash, err := analysisconfig.Hash(cfg)
	if err != nil {
		return Options{}, fmt.Errorf("hash analysis config: %w", err)
	}

	return Options{
		Catalogue:  cat,
		Params:     cfg.SignalParams(),
		Backtest:   cfg.BacktestConfig(),
		Quality:    cfg.QualityConfig(),
		MinBars:    cfg.MinBars,
		Workers:    workers,
		LoadRate:   loadRate,
		ConfigHash: hash,
	}, nil
}

func (o Options) validate() error {
	if len(o.Catalogue) == 0 {
		return fmt.Errorf("no signals selected")
	}
	if err := o.Params.Validate(); err != nil {
		return err
	}
	if err := o.Backtest.Validate(); err != nil {
		return err
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", o.Workers)
	}
	if o.LoadRate < 0 {
		return fmt.Errorf("load rate must be >= 0, got %v", o.LoadRate)
	}
	return nil
}
