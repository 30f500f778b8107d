package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

func dryRunAll(t *testing.T, overrides map[string]any) map[plan.Kind]plan.Outputs {
	t.Helper()
	r := resolveFixture(t, overrides)
	builder := NewBuilder(NewDryRunProvisioner(nil), TargetDryRun, nil)
	report, err := builder.Run(context.Background(), r, planFixture(t, r))
	require.NoError(t, err)

	out := map[plan.Kind]plan.Outputs{}
	for _, res := range report.Results {
		out[res.Kind] = res.Outputs
	}
	return out
}

// =============================================================================
// DryRun Provisioner Tests
// =============================================================================

func TestDryRun_NetworkOutputs(t *testing.T) {
	outputs := dryRunAll(t, nil)

	network := outputs[plan.KindNetwork]
	assert.Regexp(t, `^vpc-[0-9a-f]{8}$`, network[plan.OutputVPCID])
	assert.Equal(t, "10.0.0.0/16", network[plan.OutputVPCCIDR])
	assert.NotEmpty(t, network[plan.OutputSubnetIDs])
	assert.Regexp(t, `^sg-[0-9a-f]{8}$`, network[plan.OutputSecurityGroupID])
}

func TestDryRun_StorageOutputs(t *testing.T) {
	outputs := dryRunAll(t, nil)

	storage := outputs[plan.KindStorage]
	assert.Regexp(t, `^fs-[0-9a-f]{8}$`, storage[plan.OutputFileSystemID])
	assert.Regexp(t, `^fsap-[0-9a-f]{8}$`, storage[plan.OutputAccessPointID])
}

func TestDryRun_DatabaseOutputs(t *testing.T) {
	outputs := dryRunAll(t, nil)

	db := outputs[plan.KindDatabase]
	assert.Contains(t, db[plan.OutputDBEndpoint], ":5432")
	assert.Equal(t, "flow-production-database-credentials", db[plan.OutputDBSecretName])
}

func TestDryRun_ComputeOutputs(t *testing.T) {
	outputs := dryRunAll(t, nil)

	compute := outputs[plan.KindCompute]
	assert.Equal(t, "flow-production-compute-cluster", compute[plan.OutputClusterName])
	assert.Equal(t, "flow-production-compute", compute[plan.OutputServiceName])
	assert.Contains(t, compute[plan.OutputServiceURL], ":5678")
}

func TestDryRun_APIGatewayAccessOutputs(t *testing.T) {
	outputs := dryRunAll(t, nil)

	access := outputs[plan.KindAccess]
	assert.Contains(t, access[plan.OutputEndpointURL], "execute-api.eu-west-1.amazonaws.com")
}

func TestDryRun_CustomDomainAccessOutputs(t *testing.T) {
	outputs := dryRunAll(t, map[string]any{
		"access": map[string]any{"domain_name": "flow.example.com"},
	})

	access := outputs[plan.KindAccess]
	assert.Equal(t, "https://flow.example.com", access[plan.OutputEndpointURL])
}

func TestDryRun_CloudflareAccessOutputs(t *testing.T) {
	outputs := dryRunAll(t, map[string]any{
		"access": map[string]any{
			"type": "cloudflare",
			"cloudflare": map[string]any{
				"tunnel_token_secret_name": "flow-tunnel-token",
				"tunnel_name":              "flow-tunnel",
				"tunnel_domain":            "flow.example.com",
			},
		},
	})

	access := outputs[plan.KindAccess]
	assert.Equal(t, "flow-tunnel", access[plan.OutputTunnelName])
	assert.Equal(t, "https://flow.example.com", access[plan.OutputEndpointURL])
}

func TestDryRun_Deterministic(t *testing.T) {
	a := dryRunAll(t, nil)
	b := dryRunAll(t, nil)
	assert.Equal(t, a, b)
}

func TestDryRun_CancelledContext(t *testing.T) {
	r := resolveFixture(t, nil)
	p := NewDryRunProvisioner(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.BuildComponent(ctx, BuildRequest{
		Name:       "flow-production-network",
		Descriptor: plan.Descriptor{Kind: plan.KindNetwork},
		Resolved:   r,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
