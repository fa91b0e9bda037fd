package instrument

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseProfile_MergesOverDefault(t *testing.T) {
	prof, err := ParseProfile([]byte(`
name: testbed
tune_max_hz: 50.0e6
beams: 2
max_session_hours: 12
`))
	if err != nil {
		t.Fatalf("ParseProfile() error = %v", err)
	}

	if prof.Name != "testbed" || prof.Beams != 2 {
		t.Fatalf("merged profile = %+v", prof)
	}
	if prof.TuneMax != 50e6 {
		t.Fatalf("TuneMax = %g, want 50e6", prof.TuneMax)
	}
	if prof.MaxSessionSpan != 12*time.Hour {
		t.Fatalf("MaxSessionSpan = %v, want 12h", prof.MaxSessionSpan)
	}

	// Unset fields keep the stock backend values.
	def := Default()
	if prof.ClockRate != def.ClockRate || prof.TuneMin != def.TuneMin || len(prof.Filters) != len(def.Filters) {
		t.Fatalf("unset fields did not keep defaults: %+v", prof)
	}
}

func TestParseProfile_CustomFilterTable(t *testing.T) {
	prof, err := ParseProfile([]byte(`
filters:
  1: 1.0e6
  2: 2.0e6
`))
	if err != nil {
		t.Fatalf("ParseProfile() error = %v", err)
	}
	if len(prof.FilterCodes()) != 2 {
		t.Fatalf("filter codes = %v, want 2 entries", prof.FilterCodes())
	}
	if _, err := prof.FilterBandwidth(7); err == nil {
		t.Fatal("stock filter 7 survived a replacing filter table")
	}
}

func TestParseProfile_Rejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"oversized word", "word_bits: 48"},
		{"empty range", "tune_min_hz: 90.0e6\ntune_max_hz: 88.0e6"},
		{"bad filter", "filters:\n  3: -1.0"},
		{"not yaml", "{{nope"},
	}
	for _, c := range cases {
		if _, err := ParseProfile([]byte(c.yaml)); err == nil {
			t.Errorf("ParseProfile() accepted %s", c.name)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte("name: site-b\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	prof, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if prof.Name != "site-b" {
		t.Fatalf("Name = %q, want site-b", prof.Name)
	}

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadProfile() accepted a missing file")
	}
}
