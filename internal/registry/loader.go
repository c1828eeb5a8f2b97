package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"streamgen/internal/common/fsutil"
)

// Model is a GGUF weights file found in a models directory.
type Model struct {
	ID   string // filename, e.g. "opt-350m.Q4_K_M.gguf"
	Path string // absolute path
}

// LoadDir scans dir for *.gguf files (case-insensitive), sorted by ID.
func LoadDir(dir string) ([]Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		models = append(models, Model{ID: e.Name(), Path: filepath.Join(abs, e.Name())})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Resolve picks the weights file for modelID inside dir. The id matches a
// filename with or without its .gguf extension. An empty id selects the
// first model when the directory holds exactly one.
func Resolve(dir, modelID string) (Model, error) {
	models, err := LoadDir(dir)
	if err != nil {
		return Model{}, err
	}
	if len(models) == 0 {
		return Model{}, fmt.Errorf("no .gguf models in %s", dir)
	}
	id := strings.TrimSpace(modelID)
	if id == "" {
		if len(models) > 1 {
			return Model{}, fmt.Errorf("%d models in %s; set a model id", len(models), dir)
		}
		return models[0], nil
	}
	for _, m := range models {
		if m.ID == id || strings.TrimSuffix(m.ID, filepath.Ext(m.ID)) == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("model %q not found in %s", id, dir)
}
