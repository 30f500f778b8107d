package config

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// =============================================================================
// Strict Decoding
// =============================================================================

// Decode converts the untyped document tree into a typed File.
// Decoding is strict: keys the schema does not know are rejected with
// ErrUnknownField, and type mismatches with ErrSchemaViolation. The
// environment settings sub-trees stay untyped here (see File) and are
// checked by Validate and the resolver.
func Decode(tree map[string]any) (*File, error) {
	var f File
	if err := decodeStrict(tree, &f, ""); err != nil {
		return nil, err
	}
	if f.Global.ProjectName == "" {
		return nil, NewSchemaError("global.project_name", "non-empty string", ErrMissingRequiredField)
	}
	if len(f.Environments) == 0 {
		return nil, NewSchemaError("environments", "at least one environment", ErrMissingRequiredField)
	}
	for name, env := range f.Environments {
		if env.Account == "" {
			return nil, NewSchemaError("environments."+name+".account", "non-empty string", ErrMissingRequiredField)
		}
		if env.Region == "" {
			return nil, NewSchemaError("environments."+name+".region", "non-empty string", ErrMissingRequiredField)
		}
	}
	return &f, nil
}

// decodeSettings strict-decodes a settings-shaped sub-tree.
// The path prefix is used in error messages.
func decodeSettings(tree map[string]any, path string) (*Settings, error) {
	var s Settings
	if err := decodeStrict(tree, &s, path); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeStrict decodes tree into out, rejecting unknown keys.
func decodeStrict(tree map[string]any, out any, pathPrefix string) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   out,
		TagName:  "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	if err := dec.Decode(tree); err != nil {
		return NewSchemaError(pathPrefix, "", fmt.Errorf("%w: %v", ErrSchemaViolation, err))
	}

	if len(md.Unused) > 0 {
		// Report the first unknown key deterministically.
		unused := append([]string(nil), md.Unused...)
		sort.Strings(unused)
		return NewSchemaError(joinPath(pathPrefix, unused[0]), "", ErrUnknownField)
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}
