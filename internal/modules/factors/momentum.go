package factors

import (
	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// MomentumConfig holds the rate-of-change horizons.
type MomentumConfig struct {
	ROCShort int `json:"roc_short" yaml:"roc_short" validate:"min=1"`
	ROCLong  int `json:"roc_long" yaml:"roc_long" validate:"min=1"`
}

// DefaultMomentumConfig returns ROC 10 and 20.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{ROCShort: 10, ROCLong: 20}
}

// Momentum is 0.6 × ROC10 + 0.4 × ROC20.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum validates cfg.
func NewMomentum(cfg MomentumConfig) (*Momentum, error) {
	if err := panel.ValidateConfig("momentum", cfg); err != nil {
		return nil, err
	}
	return &Momentum{cfg: cfg}, nil
}

// Name implements Factor.
func (f *Momentum) Name() string { return NameMomentum }

// Required implements Factor.
func (f *Momentum) Required() []string {
	return []string{panel.LevelDate, panel.LevelTicker, panel.ColClose}
}

// Compute implements Factor.
func (f *Momentum) Compute(p *panel.Panel) (panel.Series, error) {
	closes, err := requireAndClose(p, f.Required())
	if err != nil {
		return panel.Series{}, err
	}

	return blend(RawName(NameMomentum), p.Index(),
		term{0.6, technical.RateOfChange(closes, f.cfg.ROCShort).Values},
		term{0.4, technical.RateOfChange(closes, f.cfg.ROCLong).Values},
	), nil
}
