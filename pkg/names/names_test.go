package names

import (
	"context"
	"errors"
	"testing"
)

// fakeIndex reports a fixed set of persisted names.
type fakeIndex struct {
	existing map[string]bool
	err      error
}

func (f *fakeIndex) FileNameExists(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[name], nil
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		name        string
		archiveID   string
		description string
		want        string
	}{
		{"plain description", "arch-1", "photos/2012/beach.jpg", "photos/2012/beach.jpg"},
		{"trims whitespace", "arch-1", "  report.pdf \n", "report.pdf"},
		{"empty falls back to archive id", "arch-1", "", "arch-1"},
		{"whitespace only falls back", "arch-1", "   ", "arch-1"},
		{"json path field", "arch-1", `{"Path":"docs/taxes.zip","UTF8":true}`, "docs/taxes.zip"},
		{"json filename field", "arch-1", `{"FileName":"taxes.zip"}`, "taxes.zip"},
		{"json path wins over filename", "arch-1", `{"Path":"a/b","FileName":"b"}`, "a/b"},
		{"malformed json used verbatim", "arch-1", `{not json`, `{not json`},
		{"json without hint used verbatim", "arch-1", `{"Note":"x"}`, `{"Note":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseName(tt.archiveID, tt.description); got != tt.want {
				t.Errorf("BaseName(%q, %q) = %q, want %q", tt.archiveID, tt.description, got, tt.want)
			}
		})
	}
}

func TestResolve_FirstClaimKeepsBaseName(t *testing.T) {
	r := NewResolver(&fakeIndex{})
	seen := map[string]struct{}{}

	name, disambiguated, err := r.Resolve(context.Background(), "arch-1", "photo", "2012-05-01T12:00:00Z", seen)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "photo" {
		t.Errorf("name = %q, want photo", name)
	}
	if disambiguated {
		t.Error("disambiguation should not fire for a fresh name")
	}
}

func TestResolve_InMemoryCollision(t *testing.T) {
	r := NewResolver(&fakeIndex{})
	seen := map[string]struct{}{"photo": {}}

	name, disambiguated, err := r.Resolve(context.Background(), "arch-2", "photo", "2012-05-01T12:00:00Z", seen)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "photo-2012-05-01T12:00:00Z" {
		t.Errorf("name = %q, want timestamp suffix", name)
	}
	if !disambiguated {
		t.Error("disambiguation should fire for an in-memory collision")
	}
}

func TestResolve_PersistedCollision(t *testing.T) {
	r := NewResolver(&fakeIndex{existing: map[string]bool{"photo": true}})
	seen := map[string]struct{}{}

	name, disambiguated, err := r.Resolve(context.Background(), "arch-2", "photo", "2013-02-02T00:00:00Z", seen)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "photo-2013-02-02T00:00:00Z" {
		t.Errorf("name = %q, want timestamp suffix", name)
	}
	if !disambiguated {
		t.Error("disambiguation should fire for a persisted collision")
	}
}

func TestResolve_InMemoryCheckedBeforeIndex(t *testing.T) {
	// When the in-memory set already holds the name, the persisted index
	// must not be consulted: its lookups can lag and its answer is moot.
	r := NewResolver(&fakeIndex{err: errors.New("index unavailable")})
	seen := map[string]struct{}{"photo": {}}

	name, _, err := r.Resolve(context.Background(), "arch-2", "photo", "2012-05-01T12:00:00Z", seen)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "photo-2012-05-01T12:00:00Z" {
		t.Errorf("name = %q, want timestamp suffix", name)
	}
}

func TestResolve_IndexError(t *testing.T) {
	r := NewResolver(&fakeIndex{err: errors.New("index unavailable")})

	_, _, err := r.Resolve(context.Background(), "arch-1", "photo", "2012-05-01T12:00:00Z", map[string]struct{}{})
	if err == nil {
		t.Fatal("expected error from index lookup")
	}
}
