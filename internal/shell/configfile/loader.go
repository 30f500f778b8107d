// Package configfile loads layered deployment configuration documents.
// This is part of the Imperative Shell - it reads files from disk. The
// result is an untyped tree; all semantic validation happens in
// internal/core/config.
package configfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Document Loading
// =============================================================================

// Load reads one or more YAML documents and merges them into a single
// untyped tree. Later sources win when the same key path appears in more
// than one document. The merge is purely syntactic: mappings merge
// key-by-key, everything else is replaced wholesale.
//
// Returns ErrSourceNotFound if any document is missing and ErrParse if any
// document has invalid syntax.
func Load(paths ...string) (map[string]any, error) {
	if len(paths) == 0 {
		return nil, NewSourceError("", "no configuration sources given", ErrSourceNotFound)
	}

	merged := map[string]any{}
	for _, path := range paths {
		doc, err := loadOne(path)
		if err != nil {
			return nil, err
		}
		merged = mergeTrees(merged, doc)
	}
	return merged, nil
}

// loadOne reads and parses a single YAML document.
func loadOne(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewSourceError(path, "file does not exist", ErrSourceNotFound)
		}
		return nil, NewSourceError(path, err.Error(), ErrSourceNotFound)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, NewSourceError(path, fmt.Sprintf("invalid YAML syntax: %v", err), ErrParse)
	}
	if tree == nil {
		return nil, NewSourceError(path, "document is empty or not a mapping", ErrNotMapping)
	}
	return tree, nil
}

// mergeTrees merges overlay into base, returning a new tree.
// Nested mappings are merged recursively; any other value in overlay
// replaces the base value at that key.
func mergeTrees(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bm, baseIsMap := out[k].(map[string]any)
		om, overlayIsMap := v.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = mergeTrees(bm, om)
		} else {
			out[k] = v
		}
	}
	return out
}

// =============================================================================
// Document Discovery
// =============================================================================

// Discover searches for a configuration file with the given name, starting
// in dir and walking up parent directories until the filesystem root.
// Returns the absolute path of the first match.
//
// Example:
//
//	path, err := Discover("deploy.yaml", ".")
func Discover(name, dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", NewSourceError(name, err.Error(), ErrSourceNotFound)
	}

	for {
		candidate := filepath.Join(current, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", NewSourceError(name, "not found in "+dir+" or any parent directory", ErrSourceNotFound)
		}
		current = parent
	}
}
