package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/model"
	"github.com/driftline/scheddef/timectrl"
)

// defaultStartLead is how far in the future a scan with no start time is
// placed.
const defaultStartLead = 15 * time.Minute

// internal JSON shapes - kept unexported so the authoring format can evolve
// without touching the model types.
type projectJSON struct {
	Observer observerJSON  `json:"observer"`
	Project  headerJSON    `json:"project"`
	Sessions []sessionJSON `json:"sessions"`
}

type observerJSON struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type headerJSON struct {
	Title          string `json:"title"`
	Code           string `json:"code"`
	Variant        string `json:"variant"` // "SDF" (default) or "IDF"
	RemarkPI       string `json:"remark_pi"`
	RemarkOperator string `json:"remark_operator"`
}

type sessionJSON struct {
	Title          string            `json:"title"`
	ID             int               `json:"id"`
	Device         int               `json:"device"`
	Spectrometer   *spectrometerJSON `json:"spectrometer"`
	RemarkPI       string            `json:"remark_pi"`
	RemarkOperator string            `json:"remark_operator"`
	Scans          []scanJSON        `json:"scans"`
}

type spectrometerJSON struct {
	Channels     int    `json:"channels"`
	Integrations int    `json:"integrations"`
	Metatag      string `json:"metatag"`
}

type scanJSON struct {
	Title          string `json:"title"`
	Target         string `json:"target"`
	Mode           string `json:"mode"`
	Start          string `json:"start"`    // optional; defaults to a near-future instant
	Duration       string `json:"duration"` // H:MM:SS.mmm or plain seconds
	RA             float64 `json:"ra"`
	Dec            float64 `json:"dec"`
	Freq1Hz        float64 `json:"freq1_hz"`
	Freq2Hz        float64 `json:"freq2_hz"`
	Filter         int     `json:"filter"`
	StepsAreRADec  bool    `json:"steps_are_radec"`
	Steps          []stepJSON `json:"steps"`
	AltPointings   []altJSON  `json:"alt_pointings"`
	RemarkPI       string     `json:"remark_pi"`
	RemarkOperator string     `json:"remark_operator"`
}

type stepJSON struct {
	C1       float64 `json:"c1"`
	C2       float64 `json:"c2"`
	Duration string  `json:"duration"`
}

type altJSON struct {
	Target string  `json:"target"`
	Intent string  `json:"intent"`
	RA     float64 `json:"ra"`
	Dec    float64 `json:"dec"`
}

// LoadProjectDraft reads a JSON authoring description from r and builds the
// corresponding draft project. Scans with no start time are placed at a
// fixed lead from the clock's now. The draft is not validated; callers pass
// it through Finalize for that.
func LoadProjectDraft(r io.Reader, clk timectrl.Clock) (*model.Project, error) {
	var payload projectJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode project description: %w", err)
	}

	variant := model.VariantSDF
	switch strings.ToUpper(payload.Project.Variant) {
	case "", "SDF":
	case "IDF":
		variant = model.VariantIDF
	default:
		return nil, fmt.Errorf("unknown variant %q", payload.Project.Variant)
	}

	p := &model.Project{
		Observer:       model.Observer{Name: payload.Observer.Name, ID: payload.Observer.ID},
		Title:          payload.Project.Title,
		Code:           payload.Project.Code,
		Variant:        variant,
		RemarkPI:       payload.Project.RemarkPI,
		RemarkOperator: payload.Project.RemarkOperator,
	}

	for i, js := range payload.Sessions {
		s := &model.Session{
			Title:          js.Title,
			ID:             js.ID,
			Device:         js.Device,
			RemarkPI:       js.RemarkPI,
			RemarkOperator: js.RemarkOperator,
		}
		if js.Spectrometer != nil {
			s.Spectrometer = &model.Spectrometer{
				Channels:     js.Spectrometer.Channels,
				Integrations: js.Spectrometer.Integrations,
				Metatag:      js.Spectrometer.Metatag,
			}
		}
		for j, jsc := range js.Scans {
			sc, err := scanFromJSON(jsc, clk)
			if err != nil {
				return nil, fmt.Errorf("session %d scan %d: %w", i+1, j+1, err)
			}
			s.AddScan(sc)
		}
		p.AddSession(s)
	}
	return p, nil
}

func scanFromJSON(js scanJSON, clk timectrl.Clock) (*model.Scan, error) {
	mode, err := model.ParseMode(js.Mode)
	if err != nil {
		return nil, err
	}

	start := timectrl.UpcomingStart(clk, defaultStartLead)
	if js.Start != "" {
		start, err = instrument.ParseTimeString(js.Start)
		if err != nil {
			return nil, err
		}
	}

	sc := &model.Scan{
		Title:          js.Title,
		Target:         js.Target,
		Mode:           mode,
		Start:          start,
		RA:             js.RA,
		Dec:            js.Dec,
		Freq1:          js.Freq1Hz,
		Freq2:          js.Freq2Hz,
		Filter:         js.Filter,
		StepsAreRADec:  js.StepsAreRADec,
		RemarkPI:       js.RemarkPI,
		RemarkOperator: js.RemarkOperator,
	}

	if js.Duration != "" {
		ms, err := instrument.ParseDurationString(js.Duration)
		if err != nil {
			return nil, err
		}
		sc.Duration = time.Duration(ms) * time.Millisecond
	}

	for k, st := range js.Steps {
		ms, err := instrument.ParseDurationString(st.Duration)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", k+1, err)
		}
		sc.AddStep(model.Step{C1: st.C1, C2: st.C2, Duration: time.Duration(ms) * time.Millisecond})
	}
	for _, ap := range js.AltPointings {
		sc.AddAltPointing(model.AltPointing{Target: ap.Target, Intent: ap.Intent, RA: ap.RA, Dec: ap.Dec})
	}
	return sc, nil
}
