package instrument

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// profileYAML is the on-disk shape of a station profile override. Unset
// fields keep their Default() values, so a site file only has to name what
// differs from the stock backend.
type profileYAML struct {
	Name            string          `yaml:"name"`
	ClockRateHz     float64         `yaml:"clock_rate_hz"`
	WordBits        uint            `yaml:"word_bits"`
	TuneMinHz       float64         `yaml:"tune_min_hz"`
	TuneMaxHz       float64         `yaml:"tune_max_hz"`
	Filters         map[int]float64 `yaml:"filters"`
	Beams           int             `yaml:"beams"`
	CorrOutputs     int             `yaml:"corr_outputs"`
	MaxSessionHours float64         `yaml:"max_session_hours"`
}

// LoadProfile reads a YAML station profile and merges it over the default
// backend constants.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile merges YAML profile bytes over Default().
func ParseProfile(data []byte) (Profile, error) {
	var raw profileYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	p := Default()
	if raw.Name != "" {
		p.Name = raw.Name
	}
	if raw.ClockRateHz > 0 {
		p.ClockRate = raw.ClockRateHz
	}
	if raw.WordBits > 0 {
		if raw.WordBits > 32 {
			return Profile{}, fmt.Errorf("profile word_bits %d exceeds 32", raw.WordBits)
		}
		p.WordBits = raw.WordBits
	}
	if raw.TuneMinHz > 0 {
		p.TuneMin = raw.TuneMinHz
	}
	if raw.TuneMaxHz > 0 {
		p.TuneMax = raw.TuneMaxHz
	}
	if len(raw.Filters) > 0 {
		filters := make(map[int]float64, len(raw.Filters))
		for code, bw := range raw.Filters {
			if code <= 0 || bw <= 0 {
				return Profile{}, fmt.Errorf("profile filter %d has non-positive entry", code)
			}
			filters[code] = bw
		}
		p.Filters = filters
	}
	if raw.Beams > 0 {
		p.Beams = raw.Beams
	}
	if raw.CorrOutputs > 0 {
		p.CorrOutputs = raw.CorrOutputs
	}
	if raw.MaxSessionHours > 0 {
		p.MaxSessionSpan = time.Duration(raw.MaxSessionHours * float64(time.Hour))
	}

	if p.TuneMin >= p.TuneMax {
		return Profile{}, fmt.Errorf("profile tunable range [%g, %g] is empty", p.TuneMin, p.TuneMax)
	}
	return p, nil
}
