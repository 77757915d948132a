package metric

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CustomMetric is a user-authored derived metric: a named formula
// evaluated against the aggregated period totals. Definitions are
// loaded at startup from YAML files and fingerprinted so a changed
// definition is distinguishable from the one that produced older
// numbers.
type CustomMetric struct {
	Name        string  `yaml:"name"`
	Label       string  `yaml:"label"`
	Formula     Formula `yaml:"formula"`
	Fingerprint string  // SHA-256 of the raw YAML file; computed at load time
}

// FormulaRepository defines the interface for loading custom metric
// definitions.
type FormulaRepository interface {
	// Get returns the custom metric with the given name, or an error if not found.
	Get(ctx context.Context, name string) (*CustomMetric, error)

	// All returns every loaded custom metric.
	All() []CustomMetric
}

// FileSystemFormulaRepository loads custom metric definitions from
// *.yaml files in a directory. Each file contains exactly one
// definition at the top level. Definitions are loaded once at startup
// and cached in memory — no hot reload.
type FileSystemFormulaRepository struct {
	dir     string
	metrics map[string]CustomMetric // keyed by Name
}

// NewFileSystemFormulaRepository creates a new repository and eagerly
// loads all definitions from dir. Returns an error if any definition
// file is malformed or invalid.
func NewFileSystemFormulaRepository(dir string) (*FileSystemFormulaRepository, error) {
	repo := &FileSystemFormulaRepository{
		dir:     dir,
		metrics: make(map[string]CustomMetric),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemFormulaRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no definitions directory — valid (zero custom metrics configured)
	}
	if err != nil {
		return fmt.Errorf("custom metric dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("custom metric path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading custom metric dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading custom metric file %s: %w", path, err)
		}

		var cm CustomMetric
		if err := yaml.Unmarshal(data, &cm); err != nil {
			return fmt.Errorf("parsing custom metric file %s: %w", path, err)
		}
		if cm.Name == "" {
			continue // skip empty / comment-only files
		}

		if err := cm.Formula.Validate(); err != nil {
			return fmt.Errorf("custom metric %q: %w", cm.Name, err)
		}

		if _, exists := r.metrics[cm.Name]; exists {
			return fmt.Errorf("custom metric %q: duplicate name (check multiple YAML files)", cm.Name)
		}

		cm.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
		r.metrics[cm.Name] = cm
	}
	return nil
}

// Get returns the custom metric with the given name, or an error if not found.
func (r *FileSystemFormulaRepository) Get(_ context.Context, name string) (*CustomMetric, error) {
	cm, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("custom metric %q not found", name)
	}
	return &cm, nil
}

// All returns every loaded custom metric.
func (r *FileSystemFormulaRepository) All() []CustomMetric {
	out := make([]CustomMetric, 0, len(r.metrics))
	for _, cm := range r.metrics {
		out = append(out, cm)
	}
	return out
}
