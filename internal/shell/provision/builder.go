package provision

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

// =============================================================================
// Run Report
// =============================================================================

// ComponentStatus is the terminal state of one component build.
type ComponentStatus string

const (
	StatusBuilt  ComponentStatus = "built"
	StatusFailed ComponentStatus = "failed"
)

// ComponentResult records the outcome of one component build.
type ComponentResult struct {
	Kind     plan.Kind
	Name     string
	Variant  string
	Status   ComponentStatus
	Outputs  plan.Outputs
	Error    string
	Duration time.Duration
}

// Report is the operator-facing result of one deployment run. On failure it
// contains the outputs of every component built before the failure and the
// failed component's error; components after the failure point have no
// entry at all.
type Report struct {
	RunID       string
	Project     string
	Environment string
	StackType   string
	Target      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     []ComponentResult
}

// Succeeded returns the results of components that built successfully, in
// build order.
func (r *Report) Succeeded() []ComponentResult {
	var out []ComponentResult
	for _, res := range r.Results {
		if res.Status == StatusBuilt {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the failed component's result, or nil if the run
// succeeded.
func (r *Report) Failed() *ComponentResult {
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			return &r.Results[i]
		}
	}
	return nil
}

// =============================================================================
// Builder
// =============================================================================

// Builder instantiates planned components strictly in plan order, threading
// each component's outputs into the inputs of its dependents. It owns the
// outputs map for the duration of one run and discards it afterwards; it
// never retries or rolls back - failures are reported and left to the
// operator or external tooling.
type Builder struct {
	provisioner Provisioner
	target      string
	logger      *slog.Logger
}

// NewBuilder creates a Builder for the given provisioner.
func NewBuilder(provisioner Provisioner, target string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		provisioner: provisioner,
		target:      target,
		logger:      logger.With("component", "builder"),
	}
}

// Run builds every descriptor in order, fail-fast. The returned Report is
// never nil; on failure the error is a *BuildError (or the context error
// when the run was cancelled) and the report covers everything up to and
// including the failed component.
func (b *Builder) Run(ctx context.Context, resolved *config.Resolved, descriptors []plan.Descriptor) (*Report, error) {
	naming := plan.NewNamingContext(resolved)
	tags := naming.Tags(resolved)

	report := &Report{
		RunID:       uuid.NewString(),
		Project:     resolved.Project,
		Environment: resolved.Environment,
		StackType:   resolved.StackType,
		Target:      b.target,
		StartedAt:   time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	outputs, err := b.seedOutputs(ctx, resolved)
	if err != nil {
		return report, err
	}

	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			// Already-built components are left as-is; their lifecycle is
			// owned by the provisioning layer. We just stop issuing calls.
			b.logger.Warn("run cancelled", "run_id", report.RunID, "next", desc.Kind)
			return report, err
		}

		name := naming.ResourceName(desc.Kind)
		req := BuildRequest{
			Name:       name,
			Tags:       tags,
			Descriptor: desc,
			Upstream:   upstreamOutputs(desc, outputs),
			Resolved:   resolved,
		}

		b.logger.Info("building component",
			"run_id", report.RunID,
			"kind", desc.Kind,
			"name", name,
		)
		start := time.Now()
		built, err := b.provisioner.BuildComponent(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			buildErr := &BuildError{Kind: desc.Kind, Name: name, Err: err}
			report.Results = append(report.Results, ComponentResult{
				Kind:     desc.Kind,
				Name:     name,
				Variant:  desc.Variant,
				Status:   StatusFailed,
				Error:    buildErr.Error(),
				Duration: elapsed,
			})
			b.logger.Error("component build failed",
				"run_id", report.RunID,
				"kind", desc.Kind,
				"error", err,
			)
			return report, buildErr
		}

		outputs[desc.Kind] = built
		report.Results = append(report.Results, ComponentResult{
			Kind:     desc.Kind,
			Name:     name,
			Variant:  desc.Variant,
			Status:   StatusBuilt,
			Outputs:  built,
			Duration: elapsed,
		})
	}

	return report, nil
}

// seedOutputs pre-populates the outputs map for components that are elided
// with an externally-supplied substitute: an existing VPC and an existing
// database instance. When the provisioner can verify the network against
// the live target it is asked to; otherwise the outputs are synthesized
// from configuration.
func (b *Builder) seedOutputs(ctx context.Context, resolved *config.Resolved) (map[plan.Kind]plan.Outputs, error) {
	outputs := map[plan.Kind]plan.Outputs{}

	if resolved.Settings.Networking.UseExistingVPC {
		if resolver, ok := b.provisioner.(NetworkResolver); ok {
			resolvedNet, err := resolver.ResolveNetwork(ctx, resolved)
			if err != nil {
				return nil, &BuildError{Kind: plan.KindNetwork, Name: resolved.Settings.Networking.VPCID, Err: err}
			}
			outputs[plan.KindNetwork] = resolvedNet
		} else {
			outputs[plan.KindNetwork] = plan.SynthesizedNetworkOutputs(resolved)
		}
		b.logger.Info("network elided, using existing VPC",
			"vpc_id", resolved.Settings.Networking.VPCID,
		)
	}

	db := resolved.Settings.Database
	if db.Type == config.DatabasePostgres && db.UseExisting {
		outputs[plan.KindDatabase] = plan.SynthesizedDatabaseOutputs(resolved)
	}

	return outputs, nil
}

// upstreamOutputs selects the outputs of the descriptor's declared
// dependencies.
func upstreamOutputs(desc plan.Descriptor, outputs map[plan.Kind]plan.Outputs) map[plan.Kind]plan.Outputs {
	upstream := make(map[plan.Kind]plan.Outputs, len(desc.DependsOn))
	for _, dep := range desc.DependsOn {
		if out, ok := outputs[dep]; ok {
			upstream[dep] = out
		}
	}
	return upstream
}
