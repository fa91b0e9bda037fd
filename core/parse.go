package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/model"
)

// Parse reads a schedule file and rebuilds the draft project graph. The
// result is a draft: it has not been validated, and callers that want the
// usual guarantees pass it through Finalize.
//
// The variant is detected from the first session-opening key (SESSION_ID or
// RUN_ID). Human-readable companion lines (keys suffixed "+", and the
// derived start-time line) are ignored; the machine fields are
// authoritative. The profile is needed to reconstruct tuning frequencies
// from their words.
func Parse(r io.Reader, prof instrument.Profile) (*model.Project, error) {
	p := &parser{
		prof: prof,
		proj: &model.Project{},
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), " \t\r")
		if text == "" {
			continue
		}
		key, value := splitKV(text)
		if err := p.handle(line, key, value); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSchedule, err)
	}
	if err := p.close(line); err != nil {
		return nil, err
	}
	return p.proj, nil
}

func splitKV(line string) (key, value string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeft(line[i:], " \t")
}

type parser struct {
	prof instrument.Profile
	proj *model.Project

	voc    vocab
	vocSet bool

	sess *model.Session
	scan *scanDraft

	seenPI bool
}

// scanDraft accumulates a scan block. Indexed keys may legally arrive in
// any order, so steps and alternate pointings collect into maps keyed by
// their 1-based index and get checked for contiguity at block close.
type scanDraft struct {
	line int
	scan *model.Scan

	mjd, mpm           int
	haveMJD, haveMPM   bool
	haveDur, haveMode  bool
	stpN, altN         int
	haveStpN, haveAltN bool

	steps map[int]*model.Step
	alts  map[int]*model.AltPointing
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedSchedule, line, fmt.Sprintf(format, args...))
}

func (p *parser) handle(line int, key, value string) error {
	// Companion lines restate machine fields for humans.
	if strings.HasSuffix(key, "+") || strings.Contains(key, "+[") {
		return nil
	}

	switch key {
	case "PI_ID":
		id, err := parseInt(line, key, value)
		if err != nil {
			return err
		}
		p.proj.Observer.ID = id
		p.seenPI = true
		return nil
	case "PI_NAME":
		p.proj.Observer.Name = value
		return nil
	case "PROJECT_ID":
		p.proj.Code = value
		return nil
	case "PROJECT_TITLE":
		p.proj.Title = value
		return nil
	case "PROJECT_REMPI":
		p.proj.RemarkPI = value
		return nil
	case "PROJECT_REMPO":
		p.proj.RemarkOperator = value
		return nil
	}

	if key == "SESSION_ID" || key == "RUN_ID" {
		variant := model.VariantSDF
		if key == "RUN_ID" {
			variant = model.VariantIDF
		}
		return p.openSession(line, variant, value)
	}

	if !p.vocSet {
		return malformed(line, "key %s before any %s or %s block", key, "SESSION_ID", "RUN_ID")
	}

	// The device key shares the session prefix, so match it first.
	if key == p.voc.device {
		return p.handleSessionKey(line, "__DEVICE", value)
	}
	if sk, ok := strings.CutPrefix(key, p.voc.session+"_"); ok {
		return p.handleSessionKey(line, sk, value)
	}
	if sk, ok := strings.CutPrefix(key, p.voc.scan+"_"); ok {
		return p.handleScanKey(line, sk, value)
	}
	return malformed(line, "unrecognized key %s", key)
}

func (p *parser) openSession(line int, variant model.Variant, value string) error {
	if !p.vocSet {
		p.proj.Variant = variant
		p.voc = vocabFor(variant)
		p.vocSet = true
	} else if variant != p.proj.Variant {
		return malformed(line, "%s key in a %s file", variant, p.proj.Variant)
	}
	if err := p.closeScan(line); err != nil {
		return err
	}

	id, err := parseInt(line, p.voc.session+"_ID", value)
	if err != nil {
		return err
	}
	p.sess = &model.Session{ID: id}
	p.proj.Sessions = append(p.proj.Sessions, p.sess)
	return nil
}

func (p *parser) handleSessionKey(line int, sub, value string) error {
	if p.sess == nil {
		return malformed(line, "session key before any session block")
	}
	switch sub {
	case "TITLE":
		p.sess.Title = value
	case "REMPI":
		p.sess.RemarkPI = value
	case "REMPO":
		p.sess.RemarkOperator = value
	case "__DEVICE":
		dev, err := parseInt(line, p.voc.device, value)
		if err != nil {
			return err
		}
		p.sess.Device = dev
	case "SPC":
		spc, err := parseSpectrometer(line, value)
		if err != nil {
			return err
		}
		p.sess.Spectrometer = spc
	default:
		return malformed(line, "unrecognized key %s_%s", p.voc.session, sub)
	}
	return nil
}

func parseSpectrometer(line int, value string) (*model.Spectrometer, error) {
	var tag string
	if i := strings.IndexByte(value, '{'); i >= 0 {
		if !strings.HasSuffix(value, "}") {
			return nil, malformed(line, "unterminated spectrometer metatag %q", value)
		}
		tag = value[i+1 : len(value)-1]
		value = strings.TrimRight(value[:i], " ")
	}
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return nil, malformed(line, "spectrometer setup needs channels and integrations, got %q", value)
	}
	ch, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, malformed(line, "bad spectrometer channel count %q", fields[0])
	}
	ints, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, malformed(line, "bad spectrometer integration count %q", fields[1])
	}
	return &model.Spectrometer{Channels: ch, Integrations: ints, Metatag: tag}, nil
}

func (p *parser) handleScanKey(line int, sub, value string) error {
	if sub == "ID" {
		if err := p.closeScan(line); err != nil {
			return err
		}
		// The rendered ordinal is positional; it is re-derived on output,
		// so only its presence matters here.
		if _, err := parseInt(line, p.voc.scan+"_ID", value); err != nil {
			return err
		}
		p.scan = &scanDraft{
			line:  line,
			scan:  &model.Scan{},
			steps: make(map[int]*model.Step),
			alts:  make(map[int]*model.AltPointing),
		}
		return nil
	}
	if p.scan == nil {
		return malformed(line, "scan key %s_%s before any scan block", p.voc.scan, sub)
	}
	d := p.scan
	sc := d.scan

	if base, idx, ok := splitIndexed(sub); ok {
		return p.handleIndexed(line, d, base, idx, value)
	}

	switch sub {
	case "TITLE":
		sc.Title = value
	case "TARGET":
		sc.Target = value
	case "REMPI":
		sc.RemarkPI = value
	case "REMPO":
		sc.RemarkOperator = value
	case "START":
		// Derived from the MJD/MPM pair; not read back.
	case "START_MJD":
		mjd, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		d.mjd, d.haveMJD = mjd, true
	case "START_MPM":
		mpm, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		if mpm < 0 || mpm >= 86400000 {
			return malformed(line, "start offset %d outside the UTC day", mpm)
		}
		d.mpm, d.haveMPM = mpm, true
	case "DUR":
		ms, err := parseInt64(line, sub, value)
		if err != nil {
			return err
		}
		sc.Duration = millis(ms)
		d.haveDur = true
	case "MODE":
		mode, err := model.ParseMode(value)
		if err != nil {
			return malformed(line, "%v", err)
		}
		sc.Mode = mode
		d.haveMode = true
	case "RA":
		return parseFloat(line, sub, value, &sc.RA)
	case "DEC":
		return parseFloat(line, sub, value, &sc.Dec)
	case "FREQ1":
		return p.parseTuningWord(line, sub, value, &sc.Freq1)
	case "FREQ2":
		return p.parseTuningWord(line, sub, value, &sc.Freq2)
	case "BW":
		code, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		sc.Filter = code
	case "STP_N":
		n, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		d.stpN, d.haveStpN = n, true
	case "STP_RADEC":
		flag, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		sc.StepsAreRADec = flag != 0
	case "ALT_N":
		n, err := parseInt(line, sub, value)
		if err != nil {
			return err
		}
		d.altN, d.haveAltN = n, true
	default:
		return malformed(line, "unrecognized key %s_%s", p.voc.scan, sub)
	}
	return nil
}

// splitIndexed recognizes BASE[n] keys. The index is returned as written;
// range and contiguity are checked when the scan block closes.
func splitIndexed(sub string) (base string, idx int, ok bool) {
	open := strings.IndexByte(sub, '[')
	if open < 0 || !strings.HasSuffix(sub, "]") {
		return "", 0, false
	}
	n, err := strconv.Atoi(sub[open+1 : len(sub)-1])
	if err != nil {
		return "", 0, false
	}
	return sub[:open], n, true
}

func (p *parser) handleIndexed(line int, d *scanDraft, base string, idx int, value string) error {
	if idx < 1 {
		return malformed(line, "index %d on %s must be 1-based", idx, base)
	}
	switch base {
	case "STP_C1":
		return parseFloat(line, base, value, &stepAt(d, idx).C1)
	case "STP_C2":
		return parseFloat(line, base, value, &stepAt(d, idx).C2)
	case "STP_T":
		ms, err := parseInt64(line, base, value)
		if err != nil {
			return err
		}
		stepAt(d, idx).Duration = millis(ms)
		return nil
	case "ALT_TARGET":
		altAt(d, idx).Target = value
		return nil
	case "ALT_INTENT":
		altAt(d, idx).Intent = value
		return nil
	case "ALT_RA":
		return parseFloat(line, base, value, &altAt(d, idx).RA)
	case "ALT_DEC":
		return parseFloat(line, base, value, &altAt(d, idx).Dec)
	}
	return malformed(line, "unrecognized indexed key %s[%d]", base, idx)
}

func stepAt(d *scanDraft, idx int) *model.Step {
	if st, ok := d.steps[idx]; ok {
		return st
	}
	st := &model.Step{}
	d.steps[idx] = st
	return st
}

func altAt(d *scanDraft, idx int) *model.AltPointing {
	if ap, ok := d.alts[idx]; ok {
		return ap
	}
	ap := &model.AltPointing{}
	d.alts[idx] = ap
	return ap
}

func (p *parser) parseTuningWord(line int, key, value string, dst *float64) error {
	word, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return malformed(line, "bad tuning word for %s: %q", key, value)
	}
	*dst = p.prof.WordToFreq(uint32(word))
	return nil
}

// closeScan finishes the pending scan block, resolving its start time and
// checking the declared step and alternate-pointing counts against the
// indices actually seen.
func (p *parser) closeScan(line int) error {
	d := p.scan
	if d == nil {
		return nil
	}
	p.scan = nil

	if !d.haveMJD || !d.haveMPM {
		return malformed(d.line, "scan block is missing its start day or offset")
	}
	if !d.haveDur && !d.haveStpN {
		return malformed(d.line, "scan block is missing its duration")
	}
	if !d.haveMode {
		return malformed(d.line, "scan block is missing its mode")
	}
	d.scan.Start = instrument.FromClock(d.mjd, d.mpm)

	if d.haveStpN || len(d.steps) > 0 {
		if !d.haveStpN {
			return malformed(d.line, "step entries without a step count")
		}
		steps, err := collectIndexed(d.line, "step", d.stpN, d.steps)
		if err != nil {
			return err
		}
		d.scan.Steps = steps
	}
	if d.haveAltN || len(d.alts) > 0 {
		if !d.haveAltN {
			return malformed(d.line, "alternate-pointing entries without a count")
		}
		alts, err := collectIndexed(d.line, "alternate pointing", d.altN, d.alts)
		if err != nil {
			return err
		}
		d.scan.AltPointings = alts
	}

	p.sess.Scans = append(p.sess.Scans, d.scan)
	return nil
}

func collectIndexed[T any](line int, what string, n int, got map[int]*T) ([]T, error) {
	if n < 1 {
		return nil, malformed(line, "declared %s count %d is not positive", what, n)
	}
	if len(got) != n {
		return nil, malformed(line, "declared %d %s entries, found %d", n, what, len(got))
	}
	out := make([]T, n)
	for i := 1; i <= n; i++ {
		entry, ok := got[i]
		if !ok {
			return nil, malformed(line, "%s entries are not contiguous: index %d missing", what, i)
		}
		out[i-1] = *entry
	}
	return out, nil
}

func (p *parser) close(line int) error {
	if err := p.closeScan(line); err != nil {
		return err
	}
	if !p.seenPI {
		return malformed(line, "file has no PI_ID header")
	}
	if p.proj.Code == "" {
		return malformed(line, "file has no PROJECT_ID header")
	}
	return nil
}

func parseInt(line int, key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, malformed(line, "bad integer for %s: %q", key, value)
	}
	return n, nil
}

func parseInt64(line int, key, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, malformed(line, "bad integer for %s: %q", key, value)
	}
	return n, nil
}

func parseFloat(line int, key, value string, dst *float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return malformed(line, "bad number for %s: %q", key, value)
	}
	*dst = f
	return nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
