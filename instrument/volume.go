package instrument

import (
	"fmt"
	"time"
)

// Raw beam data framing: 4096 complex samples per frame, 4128 bytes per
// frame on disk, two tunings times two polarizations recorded per beam.
const (
	rawSamplesPerFrame = 4096
	rawBytesPerFrame   = 4128
	rawStreamsPerBeam  = 4
)

// EstimateRawVolume returns the approximate on-disk size in bytes of a raw
// beam capture at the given filter code for the given duration. The figure
// feeds the human-readable operator remark only; it never gates validation.
func (p Profile) EstimateRawVolume(filter int, dur time.Duration) (int64, error) {
	rate, err := p.FilterBandwidth(filter)
	if err != nil {
		return 0, err
	}
	frames := rate * dur.Seconds() / rawSamplesPerFrame
	return int64(frames * rawBytesPerFrame * rawStreamsPerBeam), nil
}

// EstimateSpectrometerVolume returns the approximate on-disk size in bytes
// when the data recorder runs its spectrometer: one frame of
// header + channels*products*4 bytes per (channels * integrations) input
// samples.
func (p Profile) EstimateSpectrometerVolume(filter int, dur time.Duration, channels, integrations, products int) (int64, error) {
	rate, err := p.FilterBandwidth(filter)
	if err != nil {
		return 0, err
	}
	if channels <= 0 || integrations <= 0 || products <= 0 {
		return 0, fmt.Errorf("non-positive spectrometer dimensions")
	}
	spectra := rate * dur.Seconds() / float64(channels*integrations)
	perSpectrum := float64(spcBytesPerFrameHead + channels*products*4)
	return int64(spectra * perSpectrum), nil
}

// FormatBytes renders a byte count for remark text, scaling by 1024.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
