package model

import (
	"fmt"
	"time"
)

// Mode tags the pointing variant of a scan. Mode-specific payloads (steps,
// RA/Dec) live on Scan and are interpreted according to this tag during
// validation and rendering.
type Mode int

const (
	// ModeTrackRADec tracks a fixed celestial RA/Dec.
	ModeTrackRADec Mode = iota + 1
	// ModeTrackSun tracks the Sun.
	ModeTrackSun
	// ModeTrackJupiter tracks Jupiter.
	ModeTrackJupiter
	// ModeStepped executes an explicit list of pointing+duration steps.
	ModeStepped
	// ModeWideband captures the full digitized band with no pointing.
	ModeWideband
)

var modeNames = map[Mode]string{
	ModeTrackRADec:   "TRK_RADEC",
	ModeTrackSun:     "TRK_SOL",
	ModeTrackJupiter: "TRK_JOV",
	ModeStepped:      "STEPPED",
	ModeWideband:     "TBF",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MODE(%d)", int(m))
}

// ParseMode maps a rendered mode token back to its tag.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown observing mode %q", s)
}

// Step is one pointing of a stepped scan: a coordinate pair held for a
// duration. C1/C2 are RA hours / Dec degrees when the owning scan's
// StepsAreRADec flag is set, azimuth/elevation degrees otherwise.
type Step struct {
	C1       float64
	C2       float64
	Duration time.Duration
}

// AltPointing is a secondary simultaneous target attached to a scan, used
// for multi-beam or multi-phase-center observing. Its 1-based index is its
// position in the owning scan's slice.
type AltPointing struct {
	Target string
	Intent string
	RA     float64 // hours
	Dec    float64 // degrees
}

// Scan is one scheduled pointing-and-capture interval. Fields beyond the
// common header apply only under the matching Mode:
//
//	RA/Dec            ModeTrackRADec
//	Steps, StepsAreRADec  ModeStepped
type Scan struct {
	Title  string
	Target string

	RemarkPI       string
	RemarkOperator string

	Start    time.Time
	Duration time.Duration

	Mode Mode

	RA  float64 // hours
	Dec float64 // degrees

	// Freq1 and Freq2 are the two tuning frequencies in Hz.
	Freq1 float64
	Freq2 float64

	// Filter is the bandwidth filter code.
	Filter int

	Steps         []Step
	StepsAreRADec bool

	AltPointings []AltPointing
}

// EffectiveDuration is the scheduled length of the scan. Stepped scans take
// their length from the sum of their steps; every other mode uses Duration.
func (s *Scan) EffectiveDuration() time.Duration {
	if s.Mode != ModeStepped {
		return s.Duration
	}
	var total time.Duration
	for _, st := range s.Steps {
		total += st.Duration
	}
	return total
}

// End is the instant the scan stops capturing.
func (s *Scan) End() time.Time {
	return s.Start.Add(s.EffectiveDuration())
}

// AddStep appends a step, returning the scan for chaining.
func (s *Scan) AddStep(st Step) *Scan {
	s.Steps = append(s.Steps, st)
	return s
}

// AddAltPointing appends an alternate pointing, returning the scan for
// chaining.
func (s *Scan) AddAltPointing(ap AltPointing) *Scan {
	s.AltPointings = append(s.AltPointings, ap)
	return s
}
