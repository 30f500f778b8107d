package provision

import (
	"fmt"
	"log/slog"
)

// Target names accepted by NewProvisioner.
const (
	TargetDryRun = "dryrun"
	TargetAWS    = "aws"
	TargetDocker = "docker"
)

// NewProvisioner creates the provisioner for the given target name.
func NewProvisioner(target string, opts Options, logger *slog.Logger) (Provisioner, error) {
	switch target {
	case TargetDryRun:
		return NewDryRunProvisioner(logger), nil

	case TargetAWS:
		return NewAWSProvisioner(opts.AWSAccessKeyID, opts.AWSSecretAccessKey, logger), nil

	case TargetDocker:
		return NewDockerProvisioner(opts.DockerHost, logger)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
}

// Options carries target-specific settings that come from the tool
// configuration, not the deployment configuration.
type Options struct {
	// AWSAccessKeyID and AWSSecretAccessKey override the SDK's default
	// credential chain when both are set.
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// DockerHost overrides the engine socket for the docker target.
	DockerHost string
}
