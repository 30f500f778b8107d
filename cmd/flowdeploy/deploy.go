package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
	"github.com/flowdeploy/flowdeploy/internal/shell/configfile"
	"github.com/flowdeploy/flowdeploy/internal/shell/provision"
	"github.com/flowdeploy/flowdeploy/internal/shell/runstore"
)

// DefaultConfigName is the deployment config file discovered when no
// -config flag is given.
const DefaultConfigName = "flowdeploy.yaml"

// DeployRequest is one CLI invocation's worth of parameters.
type DeployRequest struct {
	ConfigPaths []string
	Environment string
	StackType   string
	Overrides   []string
	Target      string
	PlanOnly    bool
}

// Deployer drives the load, resolve, plan, build, persist pipeline.
type Deployer struct {
	Config *Config
	Logger *slog.Logger
}

// Run executes one deployment and returns the process exit code.
func (d *Deployer) Run(ctx context.Context, req DeployRequest) int {
	resolved, err := d.resolve(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	descriptors, err := plan.Plan(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planning error: %v\n", err)
		return ExitPlanError
	}

	printPlan(resolved, descriptors)
	if req.PlanOnly {
		return ExitSuccess
	}

	target := req.Target
	if target == "" {
		target = d.Config.Target.Default
	}

	provisioner, err := provision.NewProvisioner(target, provision.Options{
		AWSAccessKeyID:     d.Config.AWS.AccessKeyID,
		AWSSecretAccessKey: d.Config.AWS.SecretAccessKey,
		DockerHost:         d.Config.Docker.Host,
	}, d.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "target error: %v\n", err)
		return ExitUsageError
	}

	builder := provision.NewBuilder(provisioner, target, d.Logger)
	report, buildErr := builder.Run(ctx, resolved, descriptors)

	printReport(report)
	if err := d.persist(ctx, report); err != nil {
		fmt.Fprintf(os.Stderr, "state error: %v\n", err)
		if buildErr == nil {
			return ExitStateError
		}
	}

	if buildErr != nil {
		fmt.Fprintf(os.Stderr, "build error: %v\n", buildErr)
		return ExitBuildError
	}
	return ExitSuccess
}

// resolve loads and layers the deployment configuration and resolves it for
// the requested environment and stack type.
func (d *Deployer) resolve(req DeployRequest) (*config.Resolved, error) {
	paths := req.ConfigPaths
	if len(paths) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := configfile.Discover(DefaultConfigName, wd)
		if err != nil {
			return nil, err
		}
		paths = []string{found}
	}

	tree, err := configfile.Load(paths...)
	if err != nil {
		return nil, err
	}

	file, err := config.Decode(tree)
	if err != nil {
		return nil, err
	}

	overrides, err := parseOverrides(req.Overrides)
	if err != nil {
		return nil, err
	}

	d.Logger.Debug("configuration loaded",
		"sources", len(paths),
		"overrides", len(req.Overrides),
	)
	return config.Resolve(file, req.Environment, req.StackType, overrides)
}

// persist stores the run report in the state database.
func (d *Deployer) persist(ctx context.Context, report *provision.Report) error {
	dsn := d.Config.State.DSN
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return err
		}
	}

	store, err := runstore.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveReport(ctx, report)
}

// =============================================================================
// Overrides
// =============================================================================

// ErrBadOverride indicates a malformed -set flag value.
var ErrBadOverride = errors.New("malformed override")

// parseOverrides converts repeated -set flags into a settings overlay tree.
// Keys are dotted paths; values are parsed as YAML scalars, so
// "fargate.cpu=512" yields an integer and "storage.encryption=false" a
// boolean.
func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	tree := map[string]any{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q (want dotted.path=value)", ErrBadOverride, pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadOverride, pair, err)
		}

		node := tree
		segments := strings.Split(key, ".")
		for i, segment := range segments {
			if segment == "" {
				return nil, fmt.Errorf("%w: %q has an empty path segment", ErrBadOverride, pair)
			}
			if i == len(segments)-1 {
				node[segment] = value
				break
			}
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[segment] = child
			}
			node = child
		}
	}
	return tree, nil
}

// =============================================================================
// Output
// =============================================================================

func printPlan(r *config.Resolved, descriptors []plan.Descriptor) {
	fmt.Printf("Plan for %s/%s (%s) in %s:\n",
		r.Project, r.Environment, r.StackType, r.Region)
	naming := plan.NewNamingContext(r)
	for i, desc := range descriptors {
		line := fmt.Sprintf("  %d. %s", i+1, naming.ResourceName(desc.Kind))
		if desc.Variant != "" {
			line += " (" + desc.Variant + ")"
		}
		if len(desc.DependsOn) > 0 {
			deps := make([]string, len(desc.DependsOn))
			for j, dep := range desc.DependsOn {
				deps[j] = string(dep)
			}
			line += "  needs: " + strings.Join(deps, ", ")
		}
		fmt.Println(line)
	}
}

func printReport(report *provision.Report) {
	fmt.Printf("Run %s (%s):\n", report.RunID, report.Target)
	for _, res := range report.Results {
		switch res.Status {
		case provision.StatusBuilt:
			fmt.Printf("  built  %-12s %s (%s)\n", res.Kind, res.Name, res.Duration.Round(time.Millisecond))
			for _, key := range []string{plan.OutputEndpointURL, plan.OutputServiceURL} {
				if v, ok := res.Outputs[key]; ok {
					fmt.Printf("         %s: %s\n", key, v)
				}
			}
		case provision.StatusFailed:
			fmt.Printf("  failed %-12s %s: %s\n", res.Kind, res.Name, res.Error)
		}
	}
}
