// Package registry discovers .hpy components and maps their dotted,
// capitalized names to source file paths.
//
// The mapping is rebuilt wholesale by Scan and read-only during use, so
// concurrent page compiles never observe a half-updated registry.
package registry

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/hpy/internal/logging"
)

var titleCaser = cases.Title(language.English)

// ComponentRegistry maps component names to absolute source file paths.
type ComponentRegistry struct {
	baseDir string
	log     logging.Logger

	mutex   sync.RWMutex
	mapping map[string]string
}

// New creates a registry rooted at the components directory. Call Scan to
// populate it; a missing directory is not an error (no components loaded).
func New(componentsDir string, log logging.Logger) *ComponentRegistry {
	if log == nil {
		log = logging.NopLogger()
	}
	return &ComponentRegistry{
		baseDir: componentsDir,
		log:     log.WithComponent("registry"),
		mapping: make(map[string]string),
	}
}

// Scan walks the components root recursively and replaces the prior mapping
// wholesale. Re-scanning picks up added and removed components between
// builds without a process restart.
func (r *ComponentRegistry) Scan() error {
	ctx := context.Background()
	mapping := make(map[string]string)

	// An empty base means components are disabled by configuration.
	if r.baseDir == "" {
		r.mutex.Lock()
		r.mapping = mapping
		r.mutex.Unlock()
		return nil
	}

	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A missing components dir means no components, not a failure.
			if path == base {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".hpy") {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if strings.HasPrefix(stem, "_") {
			// Private/utility components are not invokable.
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		name := ComponentName(rel)

		if prior, ok := mapping[name]; ok {
			r.log.Warn(ctx, nil, "duplicate component name; overwriting",
				"name", name, "prior", prior, "path", path)
		}
		mapping[name] = path
		r.log.Debug(ctx, "registered component", "name", name, "path", rel)
		return nil
	})
	if err != nil {
		return err
	}

	r.mutex.Lock()
	r.mapping = mapping
	r.mutex.Unlock()
	return nil
}

// Path returns the source file path for a component name, or "" when the
// component is not registered.
func (r *ComponentRegistry) Path(name string) string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.mapping[name]
}

// Names returns all registered component names.
func (r *ComponentRegistry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.mapping))
	for name := range r.mapping {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered components.
func (r *ComponentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.mapping)
}

// ComponentName derives the dotted invocation name from a path relative to
// the components root: path segments capitalized and joined by dots, e.g.
// "ui/button.hpy" -> "Ui.Button".
func ComponentName(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, part := range parts {
		parts[i] = titleCaser.String(part)
	}
	return strings.Join(parts, ".")
}
