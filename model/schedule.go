package model

// Observer identifies the principal investigator a schedule is filed under.
type Observer struct {
	Name string
	ID   int
}

// Variant selects which of the two shared-layout file vocabularies a project
// renders to.
type Variant int

const (
	// VariantSDF is the single-dish session-definition vocabulary
	// (SESSION_* / OBS_* keys).
	VariantSDF Variant = iota
	// VariantIDF is the interferometer run-definition vocabulary
	// (RUN_* / SCAN_* keys).
	VariantIDF
)

func (v Variant) String() string {
	if v == VariantIDF {
		return "IDF"
	}
	return "SDF"
}

// Project is the root of a schedule graph: one observer, a project code, and
// an ordered list of sessions. Session order is significant; it fixes the
// rendered numbering.
type Project struct {
	Observer Observer
	Title    string
	Code     string
	Variant  Variant

	// RemarkPI and RemarkOperator are free-form comment fields surfaced in
	// the rendered file for the PI and the site operators respectively.
	RemarkPI       string
	RemarkOperator string

	Sessions []*Session
}

// Spectrometer configures the data recorder's transform when a session
// records spectra instead of raw voltages.
type Spectrometer struct {
	Channels     int
	Integrations int

	// Metatag selects the recorded products, e.g. "Stokes=IV". Empty means
	// the recorder default.
	Metatag string
}

// Session groups the scans recorded through one backend output. For
// single-dish files Device selects the beam; for interferometer runs it
// selects the correlator output.
type Session struct {
	Title string
	ID    int

	// Device is the output selector (beam number or correlator output).
	Device int

	Spectrometer *Spectrometer

	RemarkPI       string
	RemarkOperator string

	Scans []*Scan
}

// AddSession appends a session, returning the project for chaining.
func (p *Project) AddSession(s *Session) *Project {
	p.Sessions = append(p.Sessions, s)
	return p
}

// AddScan appends a scan, returning the session for chaining.
func (s *Session) AddScan(sc *Scan) *Session {
	s.Scans = append(s.Scans, sc)
	return s
}

// Clone returns a deep copy of the project graph. Finalized schedules hold a
// clone so later edits to the draft cannot reach behind a validation pass.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Sessions = make([]*Session, len(p.Sessions))
	for i, s := range p.Sessions {
		cs := *s
		if s.Spectrometer != nil {
			spc := *s.Spectrometer
			cs.Spectrometer = &spc
		}
		cs.Scans = make([]*Scan, len(s.Scans))
		for j, sc := range s.Scans {
			csc := *sc
			csc.Steps = append([]Step(nil), sc.Steps...)
			csc.AltPointings = append([]AltPointing(nil), sc.AltPointings...)
			cs.Scans[j] = &csc
		}
		out.Sessions[i] = &cs
	}
	return &out
}
