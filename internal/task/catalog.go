// Package task discovers task definition files, reads them, and decomposes
// their instruction block into sections.
package task

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pablasso/baton/internal/failure"
)

var orderPrefix = regexp.MustCompile(`^(\d+)`)

// excludedNames are substrings that mark meta files rather than tasks.
var excludedNames = []string{"overview", "readme"}

// Ref identifies a discovered task file. It carries no content; Load reads
// the file fresh on every run.
type Ref struct {
	ID    string // file name without extension
	Order int    // integer value of the leading digit run
	Path  string
}

// List returns the task files in dir ordered by their numeric prefix.
// A missing directory is a CatalogNotFound error; a directory without
// matching files yields an empty list.
func List(dir, ext string) ([]Ref, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.Errorf(failure.CatalogNotFound, "list tasks", "task directory not found: %s", dir)
		}
		return nil, failure.New(failure.CatalogNotFound, "list tasks", err)
	}
	if !info.IsDir() {
		return nil, failure.Errorf(failure.CatalogNotFound, "list tasks", "not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, failure.New(failure.CatalogNotFound, "list tasks", err)
	}

	refs := []Ref{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ref, ok := refFor(dir, entry.Name(), ext)
		if ok {
			refs = append(refs, ref)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Order != refs[j].Order {
			return refs[i].Order < refs[j].Order
		}
		return refs[i].ID < refs[j].ID
	})
	return refs, nil
}

func refFor(dir, name, ext string) (Ref, bool) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, strings.ToLower(ext)) {
		return Ref{}, false
	}
	for _, excluded := range excludedNames {
		if strings.Contains(lower, excluded) {
			return Ref{}, false
		}
	}
	m := orderPrefix.FindStringSubmatch(name)
	if m == nil {
		return Ref{}, false
	}
	order, err := strconv.Atoi(m[1])
	if err != nil {
		// digit run too long for an int
		return Ref{}, false
	}
	return Ref{
		ID:    name[:len(name)-len(ext)],
		Order: order,
		Path:  filepath.Join(dir, name),
	}, true
}
