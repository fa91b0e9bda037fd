package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/model"
)

// keyColumn is the fixed key field width. Keys at or over the width get a
// single separating space; the downstream parser splits on the first run of
// whitespace either way.
const keyColumn = 18

// vocab is the per-variant key vocabulary. The two file formats share one
// layout and differ only in these tokens.
type vocab struct {
	session string // session-level key prefix
	scan    string // scan-level key prefix
	device  string // output-selector key
}

func vocabFor(v model.Variant) vocab {
	if v == model.VariantIDF {
		return vocab{session: "RUN", scan: "SCAN", device: "RUN_CORR_OUT"}
	}
	return vocab{session: "SESSION", scan: "OBS", device: "SESSION_DRX_BEAM"}
}

// Validated wraps a project graph that has passed a validation pass. It
// holds a private deep copy with its clock, duration, and tuning fields
// quantized to file precision, so later edits to the caller's draft cannot
// reach a schedule that has already been checked.
type Validated struct {
	project *model.Project
	profile instrument.Profile
}

// Finalize validates a draft project against a backend profile and, on
// success, returns an immutable validated schedule. The returned graph is a
// deep copy with start times and durations truncated to the millisecond and
// tuning frequencies snapped to their quantized word values, so rendering
// and re-parsing reproduces it exactly.
func Finalize(p *model.Project, prof instrument.Profile) (*Validated, error) {
	if rep := Validate(p, prof); !rep.OK() {
		return nil, rep.Err()
	}

	clone := p.Clone()
	for _, s := range clone.Sessions {
		for _, sc := range s.Scans {
			sc.Start = sc.Start.UTC().Truncate(time.Millisecond)
			sc.Duration = sc.Duration.Truncate(time.Millisecond)
			if sc.Mode == model.ModeStepped {
				for i := range sc.Steps {
					sc.Steps[i].Duration = sc.Steps[i].Duration.Truncate(time.Millisecond)
				}
				sc.Duration = sc.EffectiveDuration()
			}
			sc.Freq1 = quantize(prof, sc.Freq1)
			sc.Freq2 = quantize(prof, sc.Freq2)
		}
	}
	return &Validated{project: clone, profile: prof}, nil
}

func quantize(prof instrument.Profile, hz float64) float64 {
	word, err := prof.FreqToWord(hz)
	if err != nil {
		return hz // unreachable after validation
	}
	return prof.WordToFreq(word)
}

// Project exposes the validated graph for inspection. Callers must not
// mutate it; build a fresh draft instead.
func (v *Validated) Project() *model.Project { return v.project }

// Render emits the canonical text form.
func (v *Validated) Render() (string, error) { return v.render(false) }

// RenderVerbose emits the canonical text form with cosmetic remark
// substitution: empty remark fields read "None provided" and empty operator
// remarks on scans carry the estimated data volume. The substitutions are
// not stored back into the graph.
func (v *Validated) RenderVerbose() (string, error) { return v.render(true) }

// Render validates a draft project and renders it in one step.
func Render(p *model.Project, prof instrument.Profile) (string, error) {
	val, err := Finalize(p, prof)
	if err != nil {
		return "", err
	}
	return val.Render()
}

func (v *Validated) render(verbose bool) (string, error) {
	// Defensive re-validation: a Validated built through Finalize always
	// passes, but render must never emit a malformed file.
	if rep := Validate(v.project, v.profile); !rep.OK() {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchedule, rep.Err())
	}

	p := v.project
	voc := vocabFor(p.Variant)
	var b strings.Builder

	writeKV(&b, "PI_ID", fmt.Sprintf("%d", p.Observer.ID))
	writeKV(&b, "PI_NAME", p.Observer.Name)
	b.WriteByte('\n')

	writeKV(&b, "PROJECT_ID", p.Code)
	writeKV(&b, "PROJECT_TITLE", p.Title)
	writeKV(&b, "PROJECT_REMPI", remark(p.RemarkPI, verbose))
	writeKV(&b, "PROJECT_REMPO", remark(p.RemarkOperator, verbose))

	for _, s := range p.Sessions {
		b.WriteByte('\n')
		v.renderSession(&b, voc, s, verbose)
	}
	return b.String(), nil
}

func (v *Validated) renderSession(b *strings.Builder, voc vocab, s *model.Session, verbose bool) {
	writeKV(b, voc.session+"_ID", fmt.Sprintf("%d", s.ID))
	writeKV(b, voc.session+"_TITLE", s.Title)
	writeKV(b, voc.session+"_REMPI", remark(s.RemarkPI, verbose))
	writeKV(b, voc.session+"_REMPO", remark(s.RemarkOperator, verbose))
	writeKV(b, voc.device, fmt.Sprintf("%d", s.Device))
	if spc := s.Spectrometer; spc != nil {
		val := fmt.Sprintf("%d %d", spc.Channels, spc.Integrations)
		if spc.Metatag != "" {
			val += "{" + spc.Metatag + "}"
		}
		writeKV(b, voc.session+"_SPC", val)
	}

	for i, sc := range s.Scans {
		b.WriteByte('\n')
		v.renderScan(b, voc, s, i+1, sc, verbose)
	}
}

func (v *Validated) renderScan(b *strings.Builder, voc vocab, s *model.Session, ordinal int, sc *model.Scan, verbose bool) {
	pfx := voc.scan + "_"

	writeKV(b, pfx+"ID", fmt.Sprintf("%d", ordinal))
	writeKV(b, pfx+"TITLE", sc.Title)
	writeKV(b, pfx+"TARGET", sc.Target)
	writeKV(b, pfx+"REMPI", remark(sc.RemarkPI, verbose))

	rempo := sc.RemarkOperator
	if rempo == "" && verbose {
		rempo = v.volumeRemark(s, sc)
	}
	writeKV(b, pfx+"REMPO", rempo)

	mjd, mpm, _ := instrument.ToClock(sc.Start)
	writeKV(b, pfx+"START_MJD", fmt.Sprintf("%d", mjd))
	writeKV(b, pfx+"START_MPM", fmt.Sprintf("%d", mpm))
	writeKV(b, pfx+"START", instrument.FormatTime(instrument.FromClock(mjd, mpm)))

	durMS := instrument.DurationMillis(sc.EffectiveDuration())
	writeKV(b, pfx+"DUR", fmt.Sprintf("%d", durMS))
	writeKV(b, pfx+"DUR+", instrument.FormatDurationMillis(durMS))

	writeKV(b, pfx+"MODE", sc.Mode.String())

	if sc.Mode == model.ModeTrackRADec {
		writeKV(b, pfx+"RA", fmt.Sprintf("%.9f", sc.RA))
		writeKV(b, pfx+"DEC", fmt.Sprintf("%+.9f", sc.Dec))
	}

	v.renderTuning(b, pfx+"FREQ1", sc.Freq1)
	v.renderTuning(b, pfx+"FREQ2", sc.Freq2)

	writeKV(b, pfx+"BW", fmt.Sprintf("%d", sc.Filter))
	if bw, err := v.profile.FilterBandwidth(sc.Filter); err == nil {
		writeKV(b, pfx+"BW+", fmt.Sprintf("%.3f MHz", bw/1e6))
	}

	if sc.Mode == model.ModeStepped {
		writeKV(b, pfx+"STP_N", fmt.Sprintf("%d", len(sc.Steps)))
		radec := 0
		if sc.StepsAreRADec {
			radec = 1
		}
		writeKV(b, pfx+"STP_RADEC", fmt.Sprintf("%d", radec))
		for i, st := range sc.Steps {
			n := i + 1
			writeKV(b, fmt.Sprintf("%sSTP_C1[%d]", pfx, n), fmt.Sprintf("%.9f", st.C1))
			writeKV(b, fmt.Sprintf("%sSTP_C2[%d]", pfx, n), fmt.Sprintf("%+.9f", st.C2))
			stepMS := instrument.DurationMillis(st.Duration)
			writeKV(b, fmt.Sprintf("%sSTP_T[%d]", pfx, n), fmt.Sprintf("%d", stepMS))
			writeKV(b, fmt.Sprintf("%sSTP_T+[%d]", pfx, n), instrument.FormatDurationMillis(stepMS))
		}
	}

	if len(sc.AltPointings) > 0 {
		writeKV(b, pfx+"ALT_N", fmt.Sprintf("%d", len(sc.AltPointings)))
		for i, ap := range sc.AltPointings {
			n := i + 1
			writeKV(b, fmt.Sprintf("%sALT_TARGET[%d]", pfx, n), ap.Target)
			writeKV(b, fmt.Sprintf("%sALT_INTENT[%d]", pfx, n), ap.Intent)
			writeKV(b, fmt.Sprintf("%sALT_RA[%d]", pfx, n), fmt.Sprintf("%.9f", ap.RA))
			writeKV(b, fmt.Sprintf("%sALT_DEC[%d]", pfx, n), fmt.Sprintf("%+.9f", ap.Dec))
		}
	}
}

func (v *Validated) renderTuning(b *strings.Builder, key string, hz float64) {
	word, err := v.profile.FreqToWord(hz)
	if err != nil {
		return // unreachable after validation
	}
	writeKV(b, key, fmt.Sprintf("%d", word))
	writeKV(b, key+"+", fmt.Sprintf("%.9f MHz", v.profile.WordToFreq(word)/1e6))
}

func (v *Validated) volumeRemark(s *model.Session, sc *model.Scan) string {
	var (
		bytes int64
		err   error
	)
	if spc := s.Spectrometer; spc != nil {
		bytes, err = v.profile.EstimateSpectrometerVolume(
			sc.Filter, sc.EffectiveDuration(),
			spc.Channels, spc.Integrations, instrument.StokesProducts(spc.Metatag))
	} else {
		bytes, err = v.profile.EstimateRawVolume(sc.Filter, sc.EffectiveDuration())
	}
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Estimated data volume for this scan is %s", instrument.FormatBytes(bytes))
}

func remark(s string, verbose bool) string {
	if s == "" && verbose {
		return "None provided"
	}
	return s
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(key)
	if value != "" {
		if pad := keyColumn - len(key); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(value)
	}
	b.WriteByte('\n')
}
