package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/model"
)

// fieldValue returns the value of the first line carrying the given key, or
// fails the test if the key never appears.
func fieldValue(t *testing.T, text, key string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		k, v := splitKV(strings.TrimRight(line, " "))
		if k == key {
			return v
		}
	}
	t.Fatalf("rendered text has no %s line", key)
	return ""
}

func TestRender_Scenario(t *testing.T) {
	text, err := Render(scenarioProject(), instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	cases := []struct {
		key, want string
	}{
		{"PI_ID", "99"},
		{"PI_NAME", "Jayce Dowell"},
		{"PROJECT_ID", "COMJD"},
		{"SESSION_ID", "101"},
		{"SESSION_DRX_BEAM", "3"},
		{"SESSION_SPC", "1024 768{Stokes=IV}"},
		{"OBS_ID", "1"},
		{"OBS_TARGET", "M87"},
		{"OBS_START_MJD", "56293"},
		{"OBS_START_MPM", "64800000"},
		{"OBS_START", "UTC 2013/01/01 18:00:00.000"},
		{"OBS_DUR", "600000"},
		{"OBS_DUR+", "0:10:00.000"},
		{"OBS_MODE", "TRK_RADEC"},
		{"OBS_FREQ1", "830506431"},
		{"OBS_FREQ1+", "37.899999990 MHz"},
		{"OBS_FREQ2", "1622226678"},
		{"OBS_FREQ2+", "74.029999992 MHz"},
		{"OBS_BW", "7"},
		{"OBS_BW+", "19.600 MHz"},
	}
	for _, c := range cases {
		if got := fieldValue(t, text, c.key); got != c.want {
			t.Errorf("%s = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestRender_KeyColumnWidth(t *testing.T) {
	text, err := Render(scenarioProject(), instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "PI_ID             99"
	if !strings.Contains(text, want+"\n") {
		t.Fatalf("rendered text lacks fixed-width line %q", want)
	}
}

func TestRender_BlockSeparation(t *testing.T) {
	text, err := Render(scenarioProject(), instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	blocks := strings.Split(strings.TrimRight(text, "\n"), "\n\n")
	// PI, project, session, one scan.
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4:\n%s", len(blocks), text)
	}
	if !strings.HasPrefix(blocks[2], "SESSION_ID") {
		t.Fatalf("third block does not open with SESSION_ID:\n%s", blocks[2])
	}
	if !strings.HasPrefix(blocks[3], "OBS_ID") {
		t.Fatalf("fourth block does not open with OBS_ID:\n%s", blocks[3])
	}
}

func TestRender_Deterministic(t *testing.T) {
	v, err := Finalize(scenarioProject(), instrument.Default())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	first, err := v.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := v.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if first != second {
		t.Fatal("repeated Render() of one validated graph differs")
	}
}

func TestRender_InvalidDraftRejected(t *testing.T) {
	p := scenarioProject()
	p.Sessions[0].Scans[0].Filter = 0

	if _, err := Render(p, instrument.Default()); !errors.Is(err, ErrScheduleConstraint) {
		t.Fatalf("Render() error = %v, want ErrScheduleConstraint", err)
	}
}

func TestFinalize_InsulatesFromLaterEdits(t *testing.T) {
	p := scenarioProject()
	v, err := Finalize(p, instrument.Default())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	before, err := v.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	p.Sessions[0].Scans[0].Target = "M31"
	after, err := v.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if before != after {
		t.Fatal("editing the draft changed an already-finalized schedule")
	}
}

func TestRender_ScanOrdinalsArePositional(t *testing.T) {
	p := scenarioProject()
	second := scenarioProject().Sessions[0].Scans[0]
	second.Title = "Observation2"
	second.Start = scenarioStart.Add(15 * time.Minute)
	p.Sessions[0].AddScan(second)

	text, err := Render(p, instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	var ids []string
	for _, line := range strings.Split(text, "\n") {
		if k, v := splitKV(line); k == "OBS_ID" {
			ids = append(ids, v)
		}
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("OBS_ID sequence = %v, want [1 2]", ids)
	}
}

func TestRender_SteppedScan(t *testing.T) {
	p := scenarioProject()
	sc := p.Sessions[0].Scans[0]
	sc.Mode = model.ModeStepped
	sc.Duration = 0
	sc.Steps = []model.Step{
		{C1: 180, C2: 45, Duration: 4 * time.Minute},
		{C1: 200, C2: 60, Duration: 6 * time.Minute},
	}

	text, err := Render(p, instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := fieldValue(t, text, "OBS_STP_N"); got != "2" {
		t.Errorf("OBS_STP_N = %q, want \"2\"", got)
	}
	if got := fieldValue(t, text, "OBS_STP_RADEC"); got != "0" {
		t.Errorf("OBS_STP_RADEC = %q, want \"0\"", got)
	}
	if got := fieldValue(t, text, "OBS_STP_T[2]"); got != "360000" {
		t.Errorf("OBS_STP_T[2] = %q, want \"360000\"", got)
	}
	// A stepped scan's duration is the sum of its steps.
	if got := fieldValue(t, text, "OBS_DUR"); got != "600000" {
		t.Errorf("OBS_DUR = %q, want \"600000\"", got)
	}
}

func TestRender_AltPointings(t *testing.T) {
	p := scenarioProject()
	p.Sessions[0].Scans[0].AltPointings = []model.AltPointing{
		{Target: "M87-OFF", Intent: "CAL", RA: 12.6, Dec: 12.0},
		{Target: "3C273", Intent: "SCI", RA: 12.485, Dec: 2.052},
	}

	text, err := Render(p, instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := fieldValue(t, text, "OBS_ALT_N"); got != "2" {
		t.Errorf("OBS_ALT_N = %q, want \"2\"", got)
	}
	if got := fieldValue(t, text, "OBS_ALT_TARGET[2]"); got != "3C273" {
		t.Errorf("OBS_ALT_TARGET[2] = %q, want \"3C273\"", got)
	}
}

func TestRender_IDFVocabulary(t *testing.T) {
	p := scenarioProject()
	p.Variant = model.VariantIDF
	p.Sessions[0].Device = 1

	text, err := Render(p, instrument.Default())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, key := range []string{"RUN_ID", "RUN_CORR_OUT", "RUN_SPC", "SCAN_ID", "SCAN_TARGET", "SCAN_DUR"} {
		fieldValue(t, text, key) // fails if absent
	}
	if strings.Contains(text, "SESSION_") || strings.Contains(text, "OBS_") {
		t.Fatal("interferometer rendering leaked single-dish keys")
	}
}

func TestRenderVerbose_Substitutions(t *testing.T) {
	v, err := Finalize(scenarioProject(), instrument.Default())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	text, err := v.RenderVerbose()
	if err != nil {
		t.Fatalf("RenderVerbose() error = %v", err)
	}
	if got := fieldValue(t, text, "PROJECT_REMPI"); got != "None provided" {
		t.Errorf("PROJECT_REMPI = %q, want \"None provided\"", got)
	}
	if got := fieldValue(t, text, "OBS_REMPO"); !strings.Contains(got, "Estimated data volume") {
		t.Errorf("OBS_REMPO = %q, want a data-volume estimate", got)
	}

	// The canonical rendering carries none of the cosmetic text.
	canonical, err := v.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(canonical, "None provided") || strings.Contains(canonical, "Estimated data volume") {
		t.Fatal("canonical rendering carries verbose substitutions")
	}
}
