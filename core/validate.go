package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/model"
)

// Diagnostic is one failed invariant. SessionID identifies the offending
// session; ScanID is the 1-based position of the offending scan within it,
// or 0 for session- and project-level problems.
type Diagnostic struct {
	SessionID int
	ScanID    int
	Message   string
}

func (d Diagnostic) String() string {
	switch {
	case d.SessionID == 0:
		return d.Message
	case d.ScanID == 0:
		return fmt.Sprintf("session %d: %s", d.SessionID, d.Message)
	default:
		return fmt.Sprintf("session %d scan %d: %s", d.SessionID, d.ScanID, d.Message)
	}
}

// Report is the cumulative outcome of a validation pass. Every check runs
// even after the first failure so a caller sees all problems at once.
type Report struct {
	Diagnostics []Diagnostic
}

// OK reports whether the graph passed every check.
func (r *Report) OK() bool { return len(r.Diagnostics) == 0 }

// Err returns nil for a passing report, or an ErrScheduleConstraint carrying
// every diagnostic.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		msgs[i] = d.String()
	}
	return fmt.Errorf("%w: %s", ErrScheduleConstraint, strings.Join(msgs, "; "))
}

func (r *Report) add(sessionID, scanID int, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		SessionID: sessionID,
		ScanID:    scanID,
		Message:   fmt.Sprintf(format, args...),
	})
}

const maxProjectCodeLen = 8

// Validate walks a project graph and checks every cross-field invariant
// against the given backend profile. It never mutates the graph, and calling
// it twice on an unchanged graph yields identical reports.
func Validate(p *model.Project, prof instrument.Profile) *Report {
	rep := &Report{}
	if p == nil {
		rep.add(0, 0, "project is nil")
		return rep
	}

	if p.Observer.ID <= 0 {
		rep.add(0, 0, "observer ID %d must be positive", p.Observer.ID)
	}
	validateProjectCode(rep, p.Code)

	seenIDs := make(map[int]int) // session ID -> first position
	for i, s := range p.Sessions {
		if s == nil {
			rep.add(0, 0, "session at position %d is nil", i+1)
			continue
		}
		if prev, dup := seenIDs[s.ID]; dup {
			rep.add(s.ID, 0, "ID already used by session at position %d", prev+1)
		} else {
			seenIDs[s.ID] = i
		}
		validateSession(rep, s, p.Variant, prof)
	}
	return rep
}

func validateProjectCode(rep *Report, code string) {
	if code == "" {
		rep.add(0, 0, "project code is empty")
		return
	}
	if len(code) > maxProjectCodeLen {
		rep.add(0, 0, "project code %q exceeds %d characters", code, maxProjectCodeLen)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			rep.add(0, 0, "project code %q contains non-alphanumeric %q", code, r)
			break
		}
	}
}

func validateSession(rep *Report, s *model.Session, variant model.Variant, prof instrument.Profile) {
	if s.ID <= 0 || s.ID > 9999 {
		rep.add(s.ID, 0, "ID must be in [1, 9999]")
	}

	// Device 0 means "let the scheduler assign an output"; anything else
	// must name a real one.
	limit := prof.Beams
	kind := "beam"
	if variant == model.VariantIDF {
		limit = prof.CorrOutputs
		kind = "correlator output"
	}
	if s.Device < 0 || s.Device > limit {
		rep.add(s.ID, 0, "%s %d outside [1, %d]", kind, s.Device, limit)
	}

	if spc := s.Spectrometer; spc != nil {
		if spc.Channels <= 0 || spc.Integrations <= 0 {
			rep.add(s.ID, 0, "spectrometer dimensions %dx%d must be positive", spc.Channels, spc.Integrations)
		} else {
			if !prof.ValidSpectrometerChannels(spc.Channels) {
				rep.add(s.ID, 0, "spectrometer channel count %d unsupported", spc.Channels)
			}
			if !prof.ValidSpectrometerIntegrations(spc.Integrations) {
				rep.add(s.ID, 0, "spectrometer integration count %d does not pack into recorder frames", spc.Integrations)
			}
		}
		if !prof.ValidSpectrometerMetatag(spc.Metatag) {
			rep.add(s.ID, 0, "spectrometer metadata tag %q unsupported", spc.Metatag)
		}
	}

	if len(s.Scans) == 0 {
		rep.add(s.ID, 0, "session has no scans")
		return
	}

	for i, sc := range s.Scans {
		if sc == nil {
			rep.add(s.ID, i+1, "scan is nil")
			continue
		}
		validateScan(rep, s.ID, i+1, sc, prof)
	}

	validateOverlaps(rep, s)
	validateSessionSpan(rep, s, prof)
}

func validateScan(rep *Report, sessionID, scanID int, sc *model.Scan, prof instrument.Profile) {
	if _, ok := map[model.Mode]bool{
		model.ModeTrackRADec:   true,
		model.ModeTrackSun:     true,
		model.ModeTrackJupiter: true,
		model.ModeStepped:      true,
		model.ModeWideband:     true,
	}[sc.Mode]; !ok {
		rep.add(sessionID, scanID, "unknown observing mode %d", int(sc.Mode))
	}

	if _, _, err := instrument.ToClock(sc.Start); err != nil {
		rep.add(sessionID, scanID, "start time: %v", err)
	}
	if sc.EffectiveDuration() <= 0 {
		rep.add(sessionID, scanID, "duration must be positive")
	}

	switch sc.Mode {
	case model.ModeTrackRADec:
		if sc.RA < 0 || sc.RA >= 24 {
			rep.add(sessionID, scanID, "RA %.6f hr outside [0, 24)", sc.RA)
		}
		if sc.Dec < -90 || sc.Dec > 90 {
			rep.add(sessionID, scanID, "Dec %.6f deg outside [-90, +90]", sc.Dec)
		}
	case model.ModeStepped:
		if len(sc.Steps) == 0 {
			rep.add(sessionID, scanID, "stepped scan has no steps")
		}
		for i, st := range sc.Steps {
			if st.Duration <= 0 {
				rep.add(sessionID, scanID, "step %d duration must be positive", i+1)
			}
			if sc.StepsAreRADec {
				if st.C1 < 0 || st.C1 >= 24 {
					rep.add(sessionID, scanID, "step %d RA %.6f hr outside [0, 24)", i+1, st.C1)
				}
				if st.C2 < -90 || st.C2 > 90 {
					rep.add(sessionID, scanID, "step %d Dec %.6f deg outside [-90, +90]", i+1, st.C2)
				}
			} else {
				if st.C1 < 0 || st.C1 >= 360 {
					rep.add(sessionID, scanID, "step %d azimuth %.6f deg outside [0, 360)", i+1, st.C1)
				}
				if st.C2 < 0 || st.C2 > 90 {
					rep.add(sessionID, scanID, "step %d elevation %.6f deg outside [0, 90]", i+1, st.C2)
				}
			}
		}
	}

	validateTuning(rep, sessionID, scanID, "frequency 1", sc.Freq1, sc.Filter, prof)
	validateTuning(rep, sessionID, scanID, "frequency 2", sc.Freq2, sc.Filter, prof)

	if _, err := prof.FilterBandwidth(sc.Filter); err != nil {
		rep.add(sessionID, scanID, "%v", err)
	}

	for i, ap := range sc.AltPointings {
		if strings.TrimSpace(ap.Target) == "" {
			rep.add(sessionID, scanID, "alternate pointing %d has no target", i+1)
		}
		if ap.RA < 0 || ap.RA >= 24 {
			rep.add(sessionID, scanID, "alternate pointing %d RA %.6f hr outside [0, 24)", i+1, ap.RA)
		}
		if ap.Dec < -90 || ap.Dec > 90 {
			rep.add(sessionID, scanID, "alternate pointing %d Dec %.6f deg outside [-90, +90]", i+1, ap.Dec)
		}
	}
}

func validateTuning(rep *Report, sessionID, scanID int, label string, hz float64, filter int, prof instrument.Profile) {
	if _, err := prof.FreqToWord(hz); err != nil {
		rep.add(sessionID, scanID, "%s: %v", label, err)
		return
	}
	if !prof.InTunableRange(hz) {
		rep.add(sessionID, scanID, "%s %.3f MHz outside tunable range [%.3f, %.3f] MHz",
			label, hz/1e6, prof.TuneMin/1e6, prof.TuneMax/1e6)
		return
	}
	ok, err := prof.TuningFitsFilter(hz, filter)
	if err != nil {
		// Filter validity is reported once per scan, not per tuning.
		return
	}
	if !ok {
		rep.add(sessionID, scanID, "%s %.3f MHz with filter %d extends outside the tunable range",
			label, hz/1e6, filter)
	}
}

// validateOverlaps sorts scans by start time and checks each adjacent pair's
// [start, start+duration) interval for intersection. Abutting intervals are
// legal. Diagnostics cite both scan positions.
func validateOverlaps(rep *Report, s *model.Session) {
	type interval struct {
		pos  int
		scan *model.Scan
	}
	ivs := make([]interval, 0, len(s.Scans))
	for i, sc := range s.Scans {
		if sc == nil {
			continue
		}
		ivs = append(ivs, interval{pos: i + 1, scan: sc})
	}
	sort.SliceStable(ivs, func(a, b int) bool {
		return ivs[a].scan.Start.Before(ivs[b].scan.Start)
	})
	for i := 1; i < len(ivs); i++ {
		prev, cur := ivs[i-1], ivs[i]
		if cur.scan.Start.Before(prev.scan.End()) {
			rep.add(s.ID, 0, "scans %d and %d overlap in time", prev.pos, cur.pos)
		}
	}
}

func validateSessionSpan(rep *Report, s *model.Session, prof instrument.Profile) {
	if prof.MaxSessionSpan <= 0 {
		return
	}
	var earliest *model.Scan
	for _, sc := range s.Scans {
		if sc == nil {
			continue
		}
		if earliest == nil || sc.Start.Before(earliest.Start) {
			earliest = sc
		}
	}
	if earliest == nil {
		return
	}
	boundary := earliest.Start.Add(prof.MaxSessionSpan)
	for i, sc := range s.Scans {
		if sc == nil {
			continue
		}
		if sc.End().After(boundary) {
			rep.add(s.ID, i+1, "scan ends %s after the session time boundary",
				instrument.FormatDurationMillis(instrument.DurationMillis(sc.End().Sub(boundary))))
		}
	}
}
