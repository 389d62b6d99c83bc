// Package names derives display filenames for retrieved archives and keeps
// them collision-free against earlier assignments.
package names

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// NameIndex answers whether a filename was already assigned by a previous
// invocation. Satisfied by the status store.
type NameIndex interface {
	FileNameExists(ctx context.Context, name string) (bool, error)
}

// Resolver assigns display filenames. Collisions are detected against two
// layers: the caller's in-memory set of names assigned during the current
// partition run, and the persisted records of prior runs. The in-memory set
// exists because the persisted index can lag behind writes; it keeps a
// single run self-consistent even then. Cross-run races remain possible and
// are accepted.
type Resolver struct {
	index NameIndex
}

// NewResolver creates a Resolver backed by the given persisted name index.
func NewResolver(index NameIndex) *Resolver {
	return &Resolver{index: index}
}

// descriptionHint is the JSON shape some archiving tools embed in the
// archive description.
type descriptionHint struct {
	Path     string `json:"Path"`
	FileName string `json:"FileName"`
}

// BaseName derives the preferred filename for an archive. Descriptions that
// are JSON objects with a Path or FileName field use that value; any other
// non-empty description is used verbatim after trimming; an empty
// description falls back to the archive ID. Deterministic: the same inputs
// always produce the same name.
func BaseName(archiveID, description string) string {
	trimmed := strings.TrimSpace(description)

	if strings.HasPrefix(trimmed, "{") {
		var hint descriptionHint
		if err := json.Unmarshal([]byte(trimmed), &hint); err == nil {
			if hint.Path != "" {
				return hint.Path
			}
			if hint.FileName != "" {
				return hint.FileName
			}
		}
	}

	if trimmed != "" {
		return trimmed
	}
	return archiveID
}

// Resolve returns the filename for an archive, suffixing the creation
// timestamp when the base name is already taken. The first archive to claim
// a base name keeps it unsuffixed. The caller must add the returned name to
// seen before resolving the next row. The second return reports whether
// disambiguation fired.
func (r *Resolver) Resolve(ctx context.Context, archiveID, description, creationDate string, seen map[string]struct{}) (string, bool, error) {
	base := BaseName(archiveID, description)

	if _, taken := seen[base]; taken {
		return base + "-" + creationDate, true, nil
	}

	exists, err := r.index.FileNameExists(ctx, base)
	if err != nil {
		return "", false, fmt.Errorf("check filename %q: %w", base, err)
	}
	if exists {
		return base + "-" + creationDate, true, nil
	}

	return base, false, nil
}
