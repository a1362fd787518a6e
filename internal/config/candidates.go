package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/panel"
)

// candidatesFile is the YAML layout of a weight candidates file:
//
//	candidates:
//	  - RS_score: 0.2
//	    Trend_score: 0.8
type candidatesFile struct {
	Candidates []map[string]float64 `yaml:"candidates"`
}

// LoadCandidates reads weight candidates from a YAML file, in file order.
// An empty path returns DefaultCandidates.
func LoadCandidates(path string) ([]calibration.Weights, error) {
	if path == "" {
		return DefaultCandidates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}
	return ParseCandidates(data)
}

// ParseCandidates decodes the YAML candidates layout.
func ParseCandidates(data []byte) ([]calibration.Weights, error) {
	var file candidatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse candidates: %v", panel.ErrValidation, err)
	}
	if len(file.Candidates) == 0 {
		return nil, fmt.Errorf("%w: candidates file lists no weight vectors", panel.ErrValidation)
	}

	out := make([]calibration.Weights, len(file.Candidates))
	for i, c := range file.Candidates {
		if len(c) == 0 {
			return nil, fmt.Errorf("%w: candidate %d is empty", panel.ErrValidation, i)
		}
		out[i] = calibration.Weights(c)
	}
	return out, nil
}

// DefaultCandidates is the equal-weight vector followed by one vector per
// factor that tilts 60% towards it and spreads the rest evenly.
func DefaultCandidates() []calibration.Weights {
	names := []string{
		factors.NameRS,
		factors.NameTrend,
		factors.NameSqueeze,
		factors.NameMomentum,
		factors.NameVolume,
	}

	equal := calibration.Weights{}
	for _, n := range names {
		equal[factors.ScoreName(n)] = 0.2
	}
	out := []calibration.Weights{equal}

	for _, tilt := range names {
		w := calibration.Weights{}
		for _, n := range names {
			w[factors.ScoreName(n)] = 0.1
		}
		w[factors.ScoreName(tilt)] = 0.6
		out = append(out, w)
	}
	return out
}
