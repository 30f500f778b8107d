// Package provision executes deployment plans. This is part of the
// Imperative Shell: the Builder sequences component builds and wires
// outputs downstream, while Provisioner implementations talk to the
// outside world (cloud APIs, the local container engine) or hand the
// plan to external IaC tooling.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

// =============================================================================
// Provisioner Contract
// =============================================================================

// BuildRequest carries everything a provisioner needs to build one
// component: the canonical resource name, the canonical tag set, the
// component descriptor, the outputs of every declared upstream dependency,
// and the resolved configuration for context.
type BuildRequest struct {
	Name       string
	Tags       map[string]string
	Descriptor plan.Descriptor
	Upstream   map[plan.Kind]plan.Outputs
	Resolved   *config.Resolved
}

// Provisioner builds a single infrastructure component. Implementations own
// all I/O; the Builder owns sequencing and data wiring.
type Provisioner interface {
	// BuildComponent builds one component and returns its outputs.
	// A blocked or slow build is interrupted through ctx.
	BuildComponent(ctx context.Context, req BuildRequest) (plan.Outputs, error)
}

// NetworkResolver is implemented by provisioners that can verify an
// existing network (use_existing_vpc) against the live target instead of
// trusting the configured IDs.
type NetworkResolver interface {
	ResolveNetwork(ctx context.Context, r *config.Resolved) (plan.Outputs, error)
}

// =============================================================================
// Error Types
// =============================================================================

// ErrUnsupportedTarget indicates an unknown provisioning target name.
var ErrUnsupportedTarget = errors.New("unsupported provisioning target")

// BuildError wraps a provisioning failure with the component it occurred on.
type BuildError struct {
	Kind plan.Kind
	Name string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s (%s): %v", e.Kind, e.Name, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
