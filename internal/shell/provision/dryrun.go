package provision

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

// =============================================================================
// Dry-Run Provisioner
// =============================================================================

// DryRunProvisioner synthesizes deterministic outputs for every component
// without touching any infrastructure. It is the default target for plan
// review and CI, and it backs the IaC handoff on the aws target: the
// synthesized identifiers are stable placeholders the external provisioning
// layer replaces with real ones.
type DryRunProvisioner struct {
	logger *slog.Logger
}

// NewDryRunProvisioner creates a dry-run provisioner.
func NewDryRunProvisioner(logger *slog.Logger) *DryRunProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunProvisioner{logger: logger.With("provisioner", "dryrun")}
}

// BuildComponent synthesizes outputs for one component. The synthesized
// identifiers are a pure function of the component name, so repeated runs
// over the same plan produce identical reports.
func (p *DryRunProvisioner) BuildComponent(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("synthesizing outputs", "kind", req.Descriptor.Kind, "name", req.Name)

	switch req.Descriptor.Kind {
	case plan.KindNetwork:
		return p.networkOutputs(req), nil
	case plan.KindStorage:
		return plan.Outputs{
			plan.OutputFileSystemID:  "fs-" + shortHash(req.Name),
			plan.OutputAccessPointID: "fsap-" + shortHash(req.Name+"/ap"),
		}, nil
	case plan.KindDatabase:
		return p.databaseOutputs(req), nil
	case plan.KindCompute:
		return plan.Outputs{
			plan.OutputClusterName: req.Name + "-cluster",
			plan.OutputServiceName: req.Name,
			plan.OutputServiceURL:  fmt.Sprintf("http://%s.internal:%d", req.Name, config.DefaultAppPort),
		}, nil
	case plan.KindAccess:
		return p.accessOutputs(req), nil
	case plan.KindMonitoring:
		return plan.Outputs{
			plan.OutputDashboardName: req.Name,
		}, nil
	default:
		return nil, fmt.Errorf("unknown component kind %q", req.Descriptor.Kind)
	}
}

func (p *DryRunProvisioner) networkOutputs(req BuildRequest) plan.Outputs {
	nw := req.Resolved.Settings.Networking
	subnets := fmt.Sprintf("subnet-%s,subnet-%s",
		shortHash(req.Name+"/a"), shortHash(req.Name+"/b"))
	return plan.Outputs{
		plan.OutputVPCID:           "vpc-" + shortHash(req.Name),
		plan.OutputVPCCIDR:         nw.VPCCIDR,
		plan.OutputSubnetIDs:       subnets,
		plan.OutputSecurityGroupID: "sg-" + shortHash(req.Name+"/sg"),
	}
}

func (p *DryRunProvisioner) databaseOutputs(req BuildRequest) plan.Outputs {
	db := req.Resolved.Settings.Database
	secret := db.ConnectionSecretName
	if secret == "" {
		secret = req.Name + "-credentials"
	}
	return plan.Outputs{
		plan.OutputDBEndpoint:   req.Name + ".cluster.internal:5432",
		plan.OutputDBSecretName: secret,
	}
}

func (p *DryRunProvisioner) accessOutputs(req BuildRequest) plan.Outputs {
	ac := req.Resolved.Settings.Access
	if req.Descriptor.Variant == plan.VariantCloudflare {
		tunnelName := ac.Cloudflare.TunnelName
		if tunnelName == "" {
			tunnelName = req.Name
		}
		return plan.Outputs{
			plan.OutputTunnelName:  tunnelName,
			plan.OutputEndpointURL: "https://" + ac.Cloudflare.TunnelDomain,
		}
	}

	host := ac.DomainName
	if host == "" {
		host = fmt.Sprintf("%s.execute-api.%s.amazonaws.com", shortHash(req.Name), req.Resolved.Region)
	}
	return plan.Outputs{
		plan.OutputEndpointURL: "https://" + host,
	}
}

// shortHash returns an 8-character stable hex digest of s.
func shortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
