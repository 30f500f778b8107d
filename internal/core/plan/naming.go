package plan

import (
	"strings"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
)

// =============================================================================
// Resource Naming
// =============================================================================

// MaxResourceNameLength bounds canonical resource names. 63 is the tightest
// limit among the targeted providers (DNS labels, load balancer names).
const MaxResourceNameLength = 63

// ManagedByTag is the mandatory marker tag value on every resource.
const ManagedByTag = "flowdeploy"

// NamingContext derives deterministic, collision-free resource names and
// the canonical tag set for one deployment run.
type NamingContext struct {
	Project     string
	Environment string
}

// NewNamingContext creates a naming context from a resolved configuration.
func NewNamingContext(r *config.Resolved) NamingContext {
	return NamingContext{
		Project:     r.Project,
		Environment: r.Environment,
	}
}

// ResourceName returns the canonical name for a component kind:
// a length-bounded slug of "{project}-{environment}-{kind}".
//
// Distinct (environment, kind) pairs never collide within one project: the
// environment and kind segments are preserved verbatim and only the project
// segment is truncated to satisfy the length bound.
//
// Example:
//
//	NamingContext{"flow", "dev"}.ResourceName(KindNetwork) // "flow-dev-network"
func (n NamingContext) ResourceName(kind Kind) string {
	project := Slugify(n.Project)
	env := Slugify(n.Environment)
	suffix := "-" + env + "-" + string(kind)

	if budget := MaxResourceNameLength - len(suffix); len(project) > budget {
		project = strings.TrimRight(project[:budget], "-")
	}
	return project + suffix
}

// Tags returns the canonical tag map for a deployment run. The mandatory
// Project, Environment and ManagedBy tags can never be overridden by custom
// tags from configuration; StackType is added when a preset is active.
func (n NamingContext) Tags(r *config.Resolved) map[string]string {
	tags := map[string]string{}
	for k, v := range r.Tags {
		tags[k] = v
	}
	if r.StackType != "" {
		tags["StackType"] = r.StackType
	}
	tags["Project"] = n.Project
	tags["Environment"] = n.Environment
	tags["ManagedBy"] = ManagedByTag
	return tags
}

// Slugify converts a name to a DNS-safe slug.
//
// Lowercase letters, digits and hyphens are kept; uppercase letters are
// lowered; spaces, underscores and dots become hyphens; everything else is
// dropped. Leading and trailing hyphens are trimmed.
//
// Example:
//
//	Slugify("My Flow 2.0!") // "my-flow-2-0"
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ', r == '_', r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
