package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftline/scheddef/internal/logging"
	"github.com/driftline/scheddef/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "archive.db"), logging.Noop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleProject(code string) *model.Project {
	p := &model.Project{
		Observer: model.Observer{Name: "Jayce Dowell", ID: 99},
		Title:    "Commissioning Observations",
		Code:     code,
		Variant:  model.VariantSDF,
	}
	p.AddSession(&model.Session{ID: 101, Scans: []*model.Scan{{Target: "M87"}, {Target: "M31"}}})
	return p
}

func TestPutAndGet(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	when := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

	id, err := st.Put(ctx, sampleProject("COMJD"), "PI_ID  99\n", when)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ProjectCode != "COMJD" || got.Variant != "SDF" || got.Observer != "Jayce Dowell" {
		t.Fatalf("Get() summary = %+v", got)
	}
	if got.Sessions != 1 || got.Scans != 2 {
		t.Fatalf("Get() counts = (%d, %d), want (1, 2)", got.Sessions, got.Scans)
	}
	if got.Body != "PI_ID  99\n" {
		t.Fatalf("Get() body = %q", got.Body)
	}
	if !got.SubmittedAt.Equal(when) {
		t.Fatalf("Get() submitted_at = %v, want %v", got.SubmittedAt, when)
	}
}

func TestGetMissing(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.Get(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirstWithoutBodies(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"AAA1", "BBB2", "CCC3"} {
		if _, err := st.Put(ctx, sampleProject(code), "body", time.Now()); err != nil {
			t.Fatalf("Put(%s) error = %v", code, err)
		}
	}

	entries, err := st.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].ProjectCode != "CCC3" || entries[1].ProjectCode != "BBB2" {
		t.Fatalf("List() order = [%s %s], want [CCC3 BBB2]", entries[0].ProjectCode, entries[1].ProjectCode)
	}
	if entries[0].Body != "" {
		t.Fatal("List() filled a body")
	}
}

func TestCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if n, err := st.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count() = (%d, %v), want (0, nil)", n, err)
	}
	if _, err := st.Put(ctx, sampleProject("COMJD"), "body", time.Now()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n, err := st.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count() = (%d, %v), want (1, nil)", n, err)
	}
}
