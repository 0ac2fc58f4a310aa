package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// manifestFile is the on-disk shape of a tool manifest: either a bare list of
// entries or a document with a top-level "tools" key.
type manifestFile struct {
	Tools []domain.ToolMetadata `json:"tools" yaml:"tools"`
}

// LoadManifestFile parses a tool manifest from a YAML or JSON file.
func LoadManifestFile(path string) ([]domain.ToolMetadata, error) {
	// #nosec G304 -- Manifest path is configured at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest %s: %w", path, err)
	}
	return parseManifest(path, data)
}

func parseManifest(path string, data []byte) ([]domain.ToolMetadata, error) {
	var doc manifestFile
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Tools) > 0 {
		return validateEntries(path, doc.Tools)
	}

	var entries []domain.ToolMetadata
	if err := yaml.Unmarshal(data, &entries); err != nil {
		if jsonErr := json.Unmarshal(data, &entries); jsonErr != nil {
			return nil, fmt.Errorf("parse tool manifest %s: %w", path, err)
		}
	}
	return validateEntries(path, entries)
}

func validateEntries(path string, entries []domain.ToolMetadata) ([]domain.ToolMetadata, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("manifest %s: %w: entry without name", path, domain.ErrManifestMalformed)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("manifest %s: %w: duplicate tool %q", path, domain.ErrManifestMalformed, e.Name)
		}
		seen[e.Name] = true
	}
	return entries, nil
}

// LoadManifestDir loads every .yaml/.yml/.json manifest in a directory,
// sorted by file name so reloads are deterministic.
func LoadManifestDir(dir string) ([]domain.ToolMetadata, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest directory %s: %w", dir, err)
	}

	var paths []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch filepath.Ext(de.Name()) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, de.Name()))
		}
	}
	sort.Strings(paths)

	var all []domain.ToolMetadata
	seen := make(map[string]string)
	for _, path := range paths {
		entries, err := LoadManifestFile(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if prev, dup := seen[e.Name]; dup {
				return nil, fmt.Errorf("manifest %s: %w: tool %q already defined in %s",
					path, domain.ErrManifestMalformed, e.Name, prev)
			}
			seen[e.Name] = path
		}
		all = append(all, entries...)
	}
	return all, nil
}
