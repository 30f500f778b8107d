package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
)

// =============================================================================
// ResourceName Tests
// =============================================================================

func TestResourceName_Simple(t *testing.T) {
	n := NamingContext{Project: "flow", Environment: "dev"}
	assert.Equal(t, "flow-dev-network", n.ResourceName(KindNetwork))
	assert.Equal(t, "flow-dev-compute", n.ResourceName(KindCompute))
}

func TestResourceName_SlugifiesSegments(t *testing.T) {
	n := NamingContext{Project: "My Flow 2.0", Environment: "Dev"}
	assert.Equal(t, "my-flow-2-0-dev-storage", n.ResourceName(KindStorage))
}

func TestResourceName_TruncatesProjectOnly(t *testing.T) {
	n := NamingContext{
		Project:     strings.Repeat("x", 100),
		Environment: "production",
	}
	name := n.ResourceName(KindMonitoring)

	assert.LessOrEqual(t, len(name), MaxResourceNameLength)
	assert.True(t, strings.HasSuffix(name, "-production-monitoring"))
}

func TestResourceName_NoTrailingHyphenAfterTruncation(t *testing.T) {
	// Truncation landing on a hyphen must not leave "--" in the name.
	project := strings.Repeat("ab-", 40)
	n := NamingContext{Project: project, Environment: "dev"}
	name := n.ResourceName(KindNetwork)

	assert.LessOrEqual(t, len(name), MaxResourceNameLength)
	assert.NotContains(t, name, "--")
}

func TestResourceName_DistinctPerKindAndEnvironment(t *testing.T) {
	n := NamingContext{Project: strings.Repeat("p", 80), Environment: "dev"}
	m := NamingContext{Project: strings.Repeat("p", 80), Environment: "prod"}

	seen := map[string]bool{}
	for _, kind := range kindOrder {
		seen[n.ResourceName(kind)] = true
		seen[m.ResourceName(kind)] = true
	}
	assert.Len(t, seen, 2*len(kindOrder))
}

// =============================================================================
// Tags Tests
// =============================================================================

func TestTags_MandatoryKeys(t *testing.T) {
	r := &config.Resolved{Project: "flow", Environment: "dev"}
	n := NewNamingContext(r)

	tags := n.Tags(r)
	assert.Equal(t, "flow", tags["Project"])
	assert.Equal(t, "dev", tags["Environment"])
	assert.Equal(t, ManagedByTag, tags["ManagedBy"])
	assert.NotContains(t, tags, "StackType")
}

func TestTags_StackTypeWhenPresetActive(t *testing.T) {
	r := &config.Resolved{Project: "flow", Environment: "dev", StackType: "standard"}
	tags := NewNamingContext(r).Tags(r)
	assert.Equal(t, "standard", tags["StackType"])
}

func TestTags_CustomTagsCannotOverrideMandatory(t *testing.T) {
	r := &config.Resolved{
		Project:     "flow",
		Environment: "dev",
		Tags: map[string]string{
			"Project":   "spoofed",
			"ManagedBy": "somebody-else",
			"Team":      "platform",
		},
	}
	tags := NewNamingContext(r).Tags(r)

	assert.Equal(t, "flow", tags["Project"])
	assert.Equal(t, ManagedByTag, tags["ManagedBy"])
	assert.Equal(t, "platform", tags["Team"])
}

// =============================================================================
// Slugify Tests
// =============================================================================

func TestSlugify_Lowercases(t *testing.T) {
	assert.Equal(t, "myflow", Slugify("MyFlow"))
}

func TestSlugify_SeparatorsBecomeHyphens(t *testing.T) {
	assert.Equal(t, "my-flow-2-0", Slugify("my flow_2.0"))
}

func TestSlugify_DropsInvalidRunes(t *testing.T) {
	assert.Equal(t, "flow2", Slugify("flow@#$2!"))
}

func TestSlugify_TrimsHyphens(t *testing.T) {
	assert.Equal(t, "flow", Slugify("--flow--"))
}

func TestSlugify_Empty(t *testing.T) {
	assert.Equal(t, "", Slugify("!!!"))
}
