package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

// =============================================================================
// AWS Provisioner
// =============================================================================

// ErrNetworkNotFound indicates a configured VPC or subnet does not exist in
// the target account and region.
var ErrNetworkNotFound = errors.New("configured network not found")

// AWSProvisioner targets an AWS account. It verifies the account-side
// preconditions of a plan over the EC2 API (existing VPCs and subnets, CIDR
// collisions) and synthesizes the component outputs for the infrastructure
// handoff; resource creation itself is owned by the IaC layer downstream.
type AWSProvisioner struct {
	accessKeyID     string
	secretAccessKey string
	synth           *DryRunProvisioner
	logger          *slog.Logger
}

// NewAWSProvisioner creates an AWS provisioner. When both key arguments are
// empty the SDK's default credential chain applies.
func NewAWSProvisioner(accessKeyID, secretAccessKey string, logger *slog.Logger) *AWSProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AWSProvisioner{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		synth:           NewDryRunProvisioner(logger),
		logger:          logger.With("provisioner", "aws"),
	}
}

func (p *AWSProvisioner) newClient(region string) *ec2.Client {
	opts := ec2.Options{Region: region}
	if p.accessKeyID != "" && p.secretAccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(p.accessKeyID, p.secretAccessKey, "")
	}
	return ec2.New(opts)
}

// BuildComponent runs the component's account preflight and synthesizes its
// outputs.
func (p *AWSProvisioner) BuildComponent(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	if req.Descriptor.Kind == plan.KindNetwork {
		if err := p.checkCIDRCollision(ctx, req.Resolved); err != nil {
			return nil, err
		}
	}
	return p.synth.BuildComponent(ctx, req)
}

// checkCIDRCollision fails when a VPC tagged with this deployment's Project
// tag already occupies the configured CIDR. A half-torn-down earlier run
// surfaces here instead of inside the IaC layer.
func (p *AWSProvisioner) checkCIDRCollision(ctx context.Context, r *config.Resolved) error {
	client := p.newClient(r.Region)
	cidr := r.Settings.Networking.VPCCIDR

	out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("cidr-block-association.cidr-block"), Values: []string{cidr}},
			{Name: aws.String("tag:Project"), Values: []string{r.Project}},
		},
	})
	if err != nil {
		return fmt.Errorf("describe VPCs: %w", err)
	}
	if len(out.Vpcs) > 0 {
		return fmt.Errorf("VPC %s already occupies CIDR %s for project %s",
			aws.ToString(out.Vpcs[0].VpcId), cidr, r.Project)
	}
	return nil
}

// ResolveNetwork verifies the configured existing VPC and subnets against the
// account and returns their live attributes.
func (p *AWSProvisioner) ResolveNetwork(ctx context.Context, r *config.Resolved) (plan.Outputs, error) {
	nw := r.Settings.Networking
	client := p.newClient(r.Region)

	vpcs, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{nw.VPCID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: vpc %s", ErrNetworkNotFound, nw.VPCID)
		}
		return nil, fmt.Errorf("describe VPC %s: %w", nw.VPCID, err)
	}
	if len(vpcs.Vpcs) == 0 {
		return nil, fmt.Errorf("%w: vpc %s", ErrNetworkNotFound, nw.VPCID)
	}
	vpc := vpcs.Vpcs[0]

	subnets, err := client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: nw.SubnetIDs,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: one of subnets %v", ErrNetworkNotFound, nw.SubnetIDs)
		}
		return nil, fmt.Errorf("describe subnets: %w", err)
	}
	for _, subnet := range subnets.Subnets {
		if aws.ToString(subnet.VpcId) != nw.VPCID {
			return nil, fmt.Errorf("subnet %s belongs to %s, not %s",
				aws.ToString(subnet.SubnetId), aws.ToString(subnet.VpcId), nw.VPCID)
		}
	}

	p.logger.Info("existing network verified",
		"vpc_id", nw.VPCID,
		"subnets", len(subnets.Subnets),
	)

	return plan.Outputs{
		plan.OutputVPCID:     aws.ToString(vpc.VpcId),
		plan.OutputVPCCIDR:   aws.ToString(vpc.CidrBlock),
		plan.OutputSubnetIDs: strings.Join(nw.SubnetIDs, ","),
	}, nil
}

// isNotFound reports whether an EC2 API error is a *.NotFound code.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.HasSuffix(apiErr.ErrorCode(), ".NotFound")
	}
	return false
}
