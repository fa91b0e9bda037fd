package instrument

import (
	"fmt"
	"testing"
	"time"
)

func TestFreqToWord_KnownTunings(t *testing.T) {
	prof := Default()
	cases := []struct {
		hz   float64
		want uint32
	}{
		{37.9e6, 830506431},
		{74.03e6, 1622226678},
	}
	for _, c := range cases {
		got, err := prof.FreqToWord(c.hz)
		if err != nil {
			t.Errorf("FreqToWord(%g) error = %v", c.hz, err)
			continue
		}
		if got != c.want {
			t.Errorf("FreqToWord(%g) = %d, want %d", c.hz, got, c.want)
		}
	}
}

func TestWordToFreq_RenderedPrecision(t *testing.T) {
	// The quantized value, not the requested one, is what a file carries.
	prof := Default()
	cases := []struct {
		word uint32
		want string
	}{
		{830506431, "37.899999990 MHz"},
		{1622226678, "74.029999992 MHz"},
	}
	for _, c := range cases {
		got := fmt.Sprintf("%.9f MHz", prof.WordToFreq(c.word)/1e6)
		if got != c.want {
			t.Errorf("WordToFreq(%d) rendered %q, want %q", c.word, got, c.want)
		}
	}
}

func TestFreqToWord_QuantizationStable(t *testing.T) {
	// Quantizing an already-quantized frequency must return the same word.
	prof := Default()
	word, err := prof.FreqToWord(37.9e6)
	if err != nil {
		t.Fatalf("FreqToWord() error = %v", err)
	}
	again, err := prof.FreqToWord(prof.WordToFreq(word))
	if err != nil {
		t.Fatalf("FreqToWord() error = %v", err)
	}
	if again != word {
		t.Fatalf("requantized word = %d, want %d", again, word)
	}
}

func TestFilterBandwidth_Table(t *testing.T) {
	prof := Default()
	want := map[int]float64{
		1: 0.25e6, 2: 0.5e6, 3: 1e6, 4: 2e6, 5: 4.9e6, 6: 9.8e6, 7: 19.6e6,
	}
	for code, bw := range want {
		got, err := prof.FilterBandwidth(code)
		if err != nil {
			t.Errorf("FilterBandwidth(%d) error = %v", code, err)
			continue
		}
		if got != bw {
			t.Errorf("FilterBandwidth(%d) = %g, want %g", code, got, bw)
		}
	}
	if _, err := prof.FilterBandwidth(8); err == nil {
		t.Error("FilterBandwidth(8) accepted an unknown code")
	}
	if _, err := prof.FilterBandwidth(0); err == nil {
		t.Error("FilterBandwidth(0) accepted an unknown code")
	}
}

func TestTuningFitsFilter_EdgeOfBand(t *testing.T) {
	prof := Default()

	// 74.03 MHz with the widest filter keeps both band edges inside 10-88 MHz.
	ok, err := prof.TuningFitsFilter(74.03e6, 7)
	if err != nil {
		t.Fatalf("TuningFitsFilter() error = %v", err)
	}
	if !ok {
		t.Fatal("TuningFitsFilter(74.03 MHz, 7) = false, want true")
	}

	// 87 MHz with the widest filter pushes the upper edge past 88 MHz.
	ok, err = prof.TuningFitsFilter(87e6, 7)
	if err != nil {
		t.Fatalf("TuningFitsFilter() error = %v", err)
	}
	if ok {
		t.Fatal("TuningFitsFilter(87 MHz, 7) = true, want false")
	}
}

func TestInTunableRange(t *testing.T) {
	prof := Default()
	for _, hz := range []float64{10e6, 37.9e6, 88e6} {
		if !prof.InTunableRange(hz) {
			t.Errorf("InTunableRange(%g) = false, want true", hz)
		}
	}
	for _, hz := range []float64{0, 9.9e6, 88.1e6, 196e6} {
		if prof.InTunableRange(hz) {
			t.Errorf("InTunableRange(%g) = true, want false", hz)
		}
	}
}

func TestValidSpectrometerChannels(t *testing.T) {
	for _, n := range []int{2, 32, 1024, 8192} {
		if !Default().ValidSpectrometerChannels(n) {
			t.Errorf("ValidSpectrometerChannels(%d) = false, want true", n)
		}
	}
	for _, n := range []int{0, 1, 3, 1000, 16384} {
		if Default().ValidSpectrometerChannels(n) {
			t.Errorf("ValidSpectrometerChannels(%d) = true, want false", n)
		}
	}
}

func TestValidSpectrometerIntegrations(t *testing.T) {
	// Legal counts are 384 doubled up to 196608.
	for _, n := range []int{384, 768, 1536, 196608} {
		if !Default().ValidSpectrometerIntegrations(n) {
			t.Errorf("ValidSpectrometerIntegrations(%d) = false, want true", n)
		}
	}
	for _, n := range []int{0, 100, 385, 393216} {
		if Default().ValidSpectrometerIntegrations(n) {
			t.Errorf("ValidSpectrometerIntegrations(%d) = true, want false", n)
		}
	}
}

func TestValidSpectrometerMetatag(t *testing.T) {
	for _, tag := range []string{"", "Stokes=XXYY", "Stokes=IV", "Stokes=IQUV"} {
		if !Default().ValidSpectrometerMetatag(tag) {
			t.Errorf("ValidSpectrometerMetatag(%q) = false, want true", tag)
		}
	}
	if Default().ValidSpectrometerMetatag("Stokes=LR") {
		t.Error("ValidSpectrometerMetatag accepted an unknown tag")
	}
}

func TestEstimateRawVolume(t *testing.T) {
	prof := Default()

	got, err := prof.EstimateRawVolume(7, 10*time.Minute)
	if err != nil {
		t.Fatalf("EstimateRawVolume() error = %v", err)
	}
	if got <= 0 {
		t.Fatalf("EstimateRawVolume() = %d, want positive", got)
	}

	// Halving the bandwidth halves the sample rate and the volume.
	half, err := prof.EstimateRawVolume(6, 10*time.Minute)
	if err != nil {
		t.Fatalf("EstimateRawVolume() error = %v", err)
	}
	if half*2 != got {
		t.Fatalf("filter 6 volume %d is not half of filter 7 volume %d", half, got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 kB"},
		{3 << 20, "3.00 MB"},
		{5 << 30, "5.00 GB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.n); got != c.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}
