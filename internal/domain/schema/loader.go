package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Loader is the external content boundary: it supplies the full catalog at
// startup and individual step definitions on demand (used when merging
// persisted answers back into a step). Implementations are read-only.
type Loader interface {
	LoadCatalog(ctx context.Context) (*Catalog, error)
	LoadStep(ctx context.Context, stepID string) (Step, error)
}

// StepNotFoundError is returned by LoadStep for unknown step ids. The caller
// surfaces this as a step-level "unable to load" state; it never aborts the
// session.
type StepNotFoundError struct {
	StepID string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step %q not found in catalog", e.StepID)
}

// DirLoader reads a catalog definition from catalog.json inside a directory.
// The file layout is versioned content managed outside this engine.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a loader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// LoadCatalog reads and validates the catalog file.
func (l *DirLoader) LoadCatalog(ctx context.Context) (*Catalog, error) {
	path := filepath.Join(l.dir, "catalog.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var def CatalogDef
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	cat, err := NewCatalog(def)
	if err != nil {
		return nil, fmt.Errorf("validate catalog %s: %w", path, err)
	}
	return cat, nil
}

// LoadStep loads the catalog and extracts one step.
func (l *DirLoader) LoadStep(ctx context.Context, stepID string) (Step, error) {
	cat, err := l.LoadCatalog(ctx)
	if err != nil {
		return Step{}, err
	}
	step, ok := cat.StepByID(stepID)
	if !ok {
		return Step{}, &StepNotFoundError{StepID: stepID}
	}
	return step, nil
}

// StaticLoader serves a catalog already held in memory. Used when the
// catalog is loaded once at startup and reused for every session.
type StaticLoader struct {
	cat *Catalog
}

// NewStaticLoader wraps an existing catalog.
func NewStaticLoader(cat *Catalog) *StaticLoader {
	return &StaticLoader{cat: cat}
}

func (l *StaticLoader) LoadCatalog(ctx context.Context) (*Catalog, error) {
	return l.cat, nil
}

func (l *StaticLoader) LoadStep(ctx context.Context, stepID string) (Step, error) {
	step, ok := l.cat.StepByID(stepID)
	if !ok {
		return Step{}, &StepNotFoundError{StepID: stepID}
	}
	return step, nil
}
