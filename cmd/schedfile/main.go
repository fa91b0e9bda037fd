// Command schedfile authors and checks observing-schedule files.
//
// It reads either a JSON project description (-describe) or an existing
// schedule file (-check, -roundtrip), runs the full constraint pass, and
// writes the canonical rendering to stdout or -out. Diagnostics go to
// stderr, one per line, with their session and scan identifiers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/driftline/scheddef/core"
	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/internal/logging"
	"github.com/driftline/scheddef/model"
	"github.com/driftline/scheddef/timectrl"
)

func main() {
	describe := flag.String("describe", "", "JSON project description to render ('-' for stdin)")
	check := flag.String("check", "", "schedule file to parse and validate ('-' for stdin)")
	roundtrip := flag.String("roundtrip", "", "schedule file to parse and re-render canonically ('-' for stdin)")
	out := flag.String("out", "", "output path (default stdout)")
	profilePath := flag.String("profile", "", "YAML station profile overriding the built-in backend")
	verbose := flag.Bool("verbose", false, "render with human-readable remark substitutions")
	flag.Parse()

	log := logging.NewFromEnv()
	if err := run(*describe, *check, *roundtrip, *out, *profilePath, *verbose, log); err != nil {
		report(err)
		os.Exit(1)
	}
}

func run(describe, check, roundtrip, out, profilePath string, verbose bool, log logging.Logger) error {
	modes := 0
	for _, m := range []string{describe, check, roundtrip} {
		if m != "" {
			modes++
		}
	}
	if modes != 1 {
		return errors.New("exactly one of -describe, -check, or -roundtrip is required")
	}

	prof := instrument.Default()
	if profilePath != "" {
		loaded, err := instrument.LoadProfile(profilePath)
		if err != nil {
			return fmt.Errorf("load station profile: %w", err)
		}
		prof = loaded
		log.Info(context.Background(), "station profile loaded",
			logging.String("path", profilePath),
			logging.String("name", prof.Name),
		)
	}

	switch {
	case describe != "":
		return renderDescription(describe, out, prof, verbose)
	case check != "":
		return checkFile(check, prof)
	default:
		return roundtripFile(roundtrip, out, prof, verbose)
	}
}

func renderDescription(path, out string, prof instrument.Profile, verbose bool) error {
	r, closeFn, err := openInput(path)
	if err != nil {
		return err
	}
	defer closeFn()

	draft, err := core.LoadProjectDraft(r, timectrl.System())
	if err != nil {
		return err
	}
	return finalizeAndWrite(draft, out, prof, verbose)
}

func checkFile(path string, prof instrument.Profile) error {
	r, closeFn, err := openInput(path)
	if err != nil {
		return err
	}
	defer closeFn()

	draft, err := core.Parse(r, prof)
	if err != nil {
		return err
	}
	if rep := core.Validate(draft, prof); !rep.OK() {
		return rep.Err()
	}
	fmt.Fprintln(os.Stderr, "ok")
	return nil
}

func roundtripFile(path, out string, prof instrument.Profile, verbose bool) error {
	r, closeFn, err := openInput(path)
	if err != nil {
		return err
	}
	defer closeFn()

	draft, err := core.Parse(r, prof)
	if err != nil {
		return err
	}
	return finalizeAndWrite(draft, out, prof, verbose)
}

func finalizeAndWrite(draft *model.Project, out string, prof instrument.Profile, verbose bool) error {
	v, err := core.Finalize(draft, prof)
	if err != nil {
		return err
	}
	text, err := renderValidated(v, verbose)
	if err != nil {
		return err
	}
	return writeOutput(out, text)
}

func renderValidated(v *core.Validated, verbose bool) (string, error) {
	if verbose {
		return v.RenderVerbose()
	}
	return v.Render()
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeOutput(path, text string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// report prints constraint reports one diagnostic per line; other errors
// print as-is.
func report(err error) {
	if errors.Is(err, core.ErrScheduleConstraint) {
		fmt.Fprintln(os.Stderr, "schedule failed validation:")
	}
	fmt.Fprintln(os.Stderr, err)
}
