package instrument

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrFrequencyRange    = errors.New("frequency outside tuning word range")
	ErrInvalidFilterCode = errors.New("unknown bandwidth filter code")
)

// Profile carries the digital backend constants a schedule is written
// against: the sample clock the tuning words are scaled by, the usable RF
// range, and the supported bandwidth filters. A Profile is a value; copy it
// freely.
type Profile struct {
	Name string

	// ClockRate is the backend sample clock in Hz. Tuning words are scaled
	// relative to this clock.
	ClockRate float64

	// WordBits is the width of the fixed-point tuning word.
	WordBits uint

	// TuneMin and TuneMax bound the tunable RF range in Hz.
	TuneMin float64
	TuneMax float64

	// Filters maps bandwidth filter codes to their output sample rate in Hz.
	Filters map[int]float64

	// Beams is the number of selectable beam outputs (session device
	// selector range for single-dish files).
	Beams int

	// CorrOutputs is the number of correlator outputs selectable by
	// interferometer run files.
	CorrOutputs int

	// MaxSessionSpan bounds how far any scan may end after the earliest scan
	// start of its session.
	MaxSessionSpan time.Duration
}

// Default returns the stock digital-processor profile: a 196 MHz sample
// clock, 32-bit tuning words, a 10-88 MHz tunable range, and seven bandwidth
// filters from 250 kHz to 19.6 MHz.
func Default() Profile {
	return Profile{
		Name:      "dp",
		ClockRate: 196e6,
		WordBits:  32,
		TuneMin:   10e6,
		TuneMax:   88e6,
		Filters: map[int]float64{
			1: 250e3,
			2: 500e3,
			3: 1e6,
			4: 2e6,
			5: 4.9e6,
			6: 9.8e6,
			7: 19.6e6,
		},
		Beams:          4,
		CorrOutputs:    2,
		MaxSessionSpan: 24 * time.Hour,
	}
}

// FreqToWord quantizes a frequency in Hz to the backend's fixed-point tuning
// word: round(hz * 2^WordBits / ClockRate). It fails when the rounded word
// does not fit the unsigned word width.
func (p Profile) FreqToWord(hz float64) (uint32, error) {
	if math.IsNaN(hz) || hz < 0 {
		return 0, fmt.Errorf("%w: %f Hz", ErrFrequencyRange, hz)
	}
	scaled := math.Round(hz * math.Pow(2, float64(p.WordBits)) / p.ClockRate)
	limit := math.Pow(2, float64(p.WordBits))
	if scaled >= limit {
		return 0, fmt.Errorf("%w: %f Hz overflows %d-bit word", ErrFrequencyRange, hz, p.WordBits)
	}
	return uint32(scaled), nil
}

// WordToFreq reconstructs the frequency in Hz encoded by a tuning word. The
// round trip FreqToWord/WordToFreq is exact to within one tuning step.
func (p Profile) WordToFreq(word uint32) float64 {
	return float64(word) * p.ClockRate / math.Pow(2, float64(p.WordBits))
}

// TuningStep is the frequency resolution of one tuning word increment.
func (p Profile) TuningStep() float64 {
	return p.ClockRate / math.Pow(2, float64(p.WordBits))
}

// FilterBandwidth returns the output sample rate (equal to the captured
// bandwidth) of a filter code in Hz.
func (p Profile) FilterBandwidth(code int) (float64, error) {
	bw, ok := p.Filters[code]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFilterCode, code)
	}
	return bw, nil
}

// FilterCodes returns the supported codes in ascending order.
func (p Profile) FilterCodes() []int {
	codes := make([]int, 0, len(p.Filters))
	for c := range p.Filters {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// InTunableRange reports whether a frequency lies inside the usable RF range.
func (p Profile) InTunableRange(hz float64) bool {
	return hz >= p.TuneMin && hz <= p.TuneMax
}

// TuningFitsFilter reports whether a tuning frequency combined with a
// filter's bandwidth stays inside the tunable range on both sides.
func (p Profile) TuningFitsFilter(hz float64, code int) (bool, error) {
	bw, err := p.FilterBandwidth(code)
	if err != nil {
		return false, err
	}
	return p.InTunableRange(hz-bw/2) && p.InTunableRange(hz+bw/2), nil
}

// Spectrometer constraints. The data recorder packs 384 integration windows
// per output frame, so integration counts must be 384 times a power of two.
const (
	spcMinChannels       = 2
	spcMaxChannels       = 8192
	spcFrameWindows      = 384
	spcMaxIntegrations   = 196608
	spcBytesPerFrameHead = 76
)

// ValidSpectrometerChannels reports whether a transform length is supported:
// a power of two within [2, 8192].
func (p Profile) ValidSpectrometerChannels(n int) bool {
	if n < spcMinChannels || n > spcMaxChannels {
		return false
	}
	return n&(n-1) == 0
}

// ValidSpectrometerIntegrations reports whether an integration window count
// packs evenly into recorder frames: 384 * 2^k, up to 196608.
func (p Profile) ValidSpectrometerIntegrations(n int) bool {
	if n <= 0 || n > spcMaxIntegrations || n%spcFrameWindows != 0 {
		return false
	}
	q := n / spcFrameWindows
	return q&(q-1) == 0
}

// ValidSpectrometerMetatag reports whether a spectrometer metadata tag is
// supported: empty, or Stokes= one of the recorder's product sets.
func (p Profile) ValidSpectrometerMetatag(tag string) bool {
	switch tag {
	case "", "Stokes=XXYY", "Stokes=IV", "Stokes=IQUV":
		return true
	}
	return false
}

// StokesProducts returns the number of cross products recorded for a
// spectrometer metadata tag. The recorder defaults to the two linear
// autocorrelations when no tag is given.
func StokesProducts(tag string) int {
	switch tag {
	case "Stokes=XXYY", "Stokes=IQUV":
		return 4
	default:
		return 2
	}
}
