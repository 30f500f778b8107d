// Command flowdeploy deploys a workflow automation stack from layered YAML
// configuration onto a dry-run, AWS, or local container target.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitPlanError   = 3
	ExitBuildError  = 4
	ExitStateError  = 5
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return fmt.Sprint([]string(*l)) }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var configPaths stringList
	var overrides stringList

	flag.Var(&configPaths, "config", "Deployment config file (repeatable; later files override earlier)")
	environment := flag.String("env", "", "Environment to deploy (required)")
	stackType := flag.String("stack-type", "", "Stack preset to apply (required)")
	flag.Var(&overrides, "set", "Settings override as dotted.path=value (repeatable)")
	target := flag.String("target", "", "Provisioning target: dryrun, aws, or docker (default from tool config)")
	planOnly := flag.Bool("plan-only", false, "Print the component plan and exit without building")
	toolConfig := flag.String("tool-config", "", "Path to tool config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowdeploy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	if *environment == "" || *stackType == "" {
		fmt.Fprintln(os.Stderr, "usage: flowdeploy -env <name> -stack-type <name> [-config file]...")
		return ExitUsageError
	}

	cfg, err := LoadConfig(*toolConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting flowdeploy",
		"version", Version,
		"environment", *environment,
		"stack_type", *stackType,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deployer := &Deployer{
		Config: cfg,
		Logger: logger,
	}

	return deployer.Run(ctx, DeployRequest{
		ConfigPaths: configPaths,
		Environment: *environment,
		StackType:   *stackType,
		Overrides:   overrides,
		Target:      *target,
		PlanOnly:    *planOnly,
	})
}
