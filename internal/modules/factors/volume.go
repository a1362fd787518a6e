package factors

import (
	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// VolumeConfig holds the volume averaging and rate-of-change windows.
type VolumeConfig struct {
	VolMAShort int `json:"vol_ma_short" yaml:"vol_ma_short" validate:"min=1"`
	VolMALong  int `json:"vol_ma_long" yaml:"vol_ma_long" validate:"min=1"`
	ROCWindow  int `json:"roc_window" yaml:"roc_window" validate:"min=1"`
}

// DefaultVolumeConfig returns SMA 20/50 of volume with a 20 day ROC.
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{VolMAShort: 20, VolMALong: 50, ROCWindow: 20}
}

// Volume blends:
//
//	0.35 × volume / SMA20(volume)
//	0.25 × volume / SMA50(volume)
//	0.25 × ROC20(volume)
//	0.15 × −(ROC20(close) − ROC20(volume))   price/volume divergence
type Volume struct {
	cfg VolumeConfig
}

// NewVolume validates cfg.
func NewVolume(cfg VolumeConfig) (*Volume, error) {
	if err := panel.ValidateConfig("volume", cfg); err != nil {
		return nil, err
	}
	return &Volume{cfg: cfg}, nil
}

// Name implements Factor.
func (f *Volume) Name() string { return NameVolume }

// Required implements Factor.
func (f *Volume) Required() []string {
	return []string{panel.LevelDate, panel.LevelTicker, panel.ColClose, panel.ColVolume}
}

// Compute implements Factor.
func (f *Volume) Compute(p *panel.Panel) (panel.Series, error) {
	closes, err := requireAndClose(p, f.Required())
	if err != nil {
		return panel.Series{}, err
	}
	volume, _ := p.Column(panel.ColVolume)

	volMAShort := technical.MovingAverage(volume, f.cfg.VolMAShort)
	volMALong := technical.MovingAverage(volume, f.cfg.VolMALong)
	volROC := technical.RateOfChange(volume, f.cfg.ROCWindow).Values
	priceROC := technical.RateOfChange(closes, f.cfg.ROCWindow).Values

	divergence := make([]float64, len(volROC))
	for i := range divergence {
		divergence[i] = -(priceROC[i] - volROC[i])
	}

	return blend(RawName(NameVolume), p.Index(),
		term{0.35, ratio(volume.Values, volMAShort.Values)},
		term{0.25, ratio(volume.Values, volMALong.Values)},
		term{0.25, volROC},
		term{0.15, divergence},
	), nil
}
