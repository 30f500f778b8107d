package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// DeepMerge Tests
// =============================================================================

func TestDeepMerge_DisjointKeys(t *testing.T) {
	base := map[string]any{"a": 1}
	overlay := map[string]any{"b": 2}

	got := DeepMerge(base, overlay)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got)
}

func TestDeepMerge_OverlayWins(t *testing.T) {
	base := map[string]any{"a": 1}
	overlay := map[string]any{"a": 2}

	got := DeepMerge(base, overlay)
	assert.Equal(t, 2, got["a"])
}

func TestDeepMerge_NestedMapsMerge(t *testing.T) {
	base := map[string]any{
		"fargate": map[string]any{"cpu": 256, "memory": 512},
	}
	overlay := map[string]any{
		"fargate": map[string]any{"cpu": 1024},
	}

	got := DeepMerge(base, overlay)
	fargate := got["fargate"].(map[string]any)
	assert.Equal(t, 1024, fargate["cpu"])
	assert.Equal(t, 512, fargate["memory"])
}

func TestDeepMerge_ListReplacedWholesale(t *testing.T) {
	base := map[string]any{"subnets": []any{"a", "b", "c"}}
	overlay := map[string]any{"subnets": []any{"x"}}

	got := DeepMerge(base, overlay)
	assert.Equal(t, []any{"x"}, got["subnets"])
}

func TestDeepMerge_ScalarReplacesMap(t *testing.T) {
	base := map[string]any{"database": map[string]any{"type": "postgres"}}
	overlay := map[string]any{"database": "sqlite"}

	got := DeepMerge(base, overlay)
	assert.Equal(t, "sqlite", got["database"])
}

func TestDeepMerge_InputsNotAliased(t *testing.T) {
	base := map[string]any{
		"nested": map[string]any{"keep": true},
	}
	overlay := map[string]any{
		"list": []any{1, 2},
	}

	got := DeepMerge(base, overlay)
	got["nested"].(map[string]any)["keep"] = false
	got["list"].([]any)[0] = 99

	assert.Equal(t, true, base["nested"].(map[string]any)["keep"])
	assert.Equal(t, 1, overlay["list"].([]any)[0])
}

func TestDeepMerge_EmptyBase(t *testing.T) {
	got := DeepMerge(map[string]any{}, map[string]any{"a": 1})
	assert.Equal(t, map[string]any{"a": 1}, got)
}
