package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/driftline/scheddef/core"
	"github.com/driftline/scheddef/internal/logging"
)

const sampleDescription = `{
  "observer": {"name": "Jayce Dowell", "id": 99},
  "project": {"title": "Commissioning Observations", "code": "COMJD"},
  "sessions": [
    {
      "title": "Session1",
      "id": 101,
      "device": 3,
      "spectrometer": {"channels": 1024, "integrations": 768, "metatag": "Stokes=IV"},
      "scans": [
        {
          "title": "Observation1",
          "target": "M87",
          "mode": "TRK_RADEC",
          "start": "UTC 2013/01/01 18:00:00.000",
          "duration": "0:10:00.000",
          "ra": 12.5137,
          "dec": 12.3911,
          "freq1_hz": 37.9e6,
          "freq2_hz": 74.03e6,
          "filter": 7
        }
      ]
    }
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_DescribeRendersSchedule(t *testing.T) {
	in := writeTemp(t, "project.json", sampleDescription)
	out := filepath.Join(t.TempDir(), "schedule.sdf")

	if err := run(in, "", "", out, "", false, logging.Noop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	rendered, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(rendered)
	for _, want := range []string{"PROJECT_ID        COMJD", "SESSION_SPC       1024 768{Stokes=IV}", "OBS_DUR           600000"} {
		if !strings.Contains(text, want) {
			t.Errorf("output lacks %q:\n%s", want, text)
		}
	}
}

func TestRun_CheckAcceptsRenderedFile(t *testing.T) {
	in := writeTemp(t, "project.json", sampleDescription)
	out := filepath.Join(t.TempDir(), "schedule.sdf")
	if err := run(in, "", "", out, "", false, logging.Noop()); err != nil {
		t.Fatalf("render run() error = %v", err)
	}

	if err := run("", out, "", "", "", false, logging.Noop()); err != nil {
		t.Fatalf("check run() error = %v", err)
	}
}

func TestRun_RoundtripIsStable(t *testing.T) {
	in := writeTemp(t, "project.json", sampleDescription)
	first := filepath.Join(t.TempDir(), "first.sdf")
	second := filepath.Join(t.TempDir(), "second.sdf")

	if err := run(in, "", "", first, "", false, logging.Noop()); err != nil {
		t.Fatalf("render run() error = %v", err)
	}
	if err := run("", "", first, second, "", false, logging.Noop()); err != nil {
		t.Fatalf("roundtrip run() error = %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Fatalf("roundtrip changed the file:\n%s\nvs\n%s", a, b)
	}
}

func TestRun_CheckReportsConstraints(t *testing.T) {
	// Beam 6 is out of range on the default backend.
	bad := strings.Replace(sampleDescription, "\"device\": 3", "\"device\": 6", 1)
	in := writeTemp(t, "project.json", bad)

	err := run(in, "", "", "", "", false, logging.Noop())
	if !errors.Is(err, core.ErrScheduleConstraint) {
		t.Fatalf("run() error = %v, want ErrScheduleConstraint", err)
	}
}

func TestRun_RequiresExactlyOneMode(t *testing.T) {
	if err := run("", "", "", "", "", false, logging.Noop()); err == nil {
		t.Fatal("run() accepted zero modes")
	}
	if err := run("a", "b", "", "", "", false, logging.Noop()); err == nil {
		t.Fatal("run() accepted two modes")
	}
}

func TestRun_ProfileOverride(t *testing.T) {
	// Narrow the band so the 74.03 MHz tuning no longer fits.
	profile := writeTemp(t, "profile.yaml", "name: narrowband\ntune_min_hz: 10.0e6\ntune_max_hz: 50.0e6\n")
	in := writeTemp(t, "project.json", sampleDescription)

	err := run(in, "", "", "", profile, false, logging.Noop())
	if !errors.Is(err, core.ErrScheduleConstraint) {
		t.Fatalf("run() error = %v, want ErrScheduleConstraint", err)
	}
}
