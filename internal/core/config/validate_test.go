package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeDoc decodes a YAML document, failing the test on error.
func decodeDoc(t *testing.T, doc string) *File {
	t.Helper()
	f, err := Decode(docFromYAML(t, doc))
	require.NoError(t, err)
	return f
}

func docWithSettings(settings string) string {
	return fmt.Sprintf(`
global:
  project_name: flow
environments:
  dev:
    account: "111111111111"
    region: us-east-1
    settings:
%s
`, settings)
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_MinimalDocument(t *testing.T) {
	f := decodeDoc(t, minimalDoc)
	assert.NoError(t, Validate(f))
}

func TestValidate_ValidFargateCombination(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      fargate:
        cpu: 1024
        memory: 4096
`))
	assert.NoError(t, Validate(f))
}

func TestValidate_InvalidFargateCPU(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      fargate:
        cpu: 300
        memory: 512
`))
	err := Validate(f)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestValidate_InvalidFargateCombination(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      fargate:
        cpu: 256
        memory: 4096
`))
	err := Validate(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Contains(t, err.Error(), "256/4096")
}

func TestValidate_MemoryCheckedAgainstDefaultCPU(t *testing.T) {
	// cpu omitted defaults to 256, which cannot carry 8192 MiB.
	f := decodeDoc(t, docWithSettings(`
      fargate:
        memory: 8192
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_SpotPercentageOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      fargate:
        spot_percentage: 120
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_SpotPercentageZeroAllowed(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      fargate:
        spot_percentage: 0
`))
	assert.NoError(t, Validate(f))
}

func TestValidate_ScalingMaxBelowMin(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      scaling:
        min_tasks: 4
        max_tasks: 2
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_ScalingTargetCPUOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      scaling:
        target_cpu_utilization: 95
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_ScalingCooldownTooShort(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      scaling:
        scale_in_cooldown: 30
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_ExistingVPCRequiresID(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      networking:
        use_existing_vpc: true
        subnet_ids: [subnet-1]
`))
	err := Validate(f)
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "environments.dev.settings.networking.vpc_id", schemaErr.Path)
}

func TestValidate_ExistingVPCRequiresSubnets(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      networking:
        use_existing_vpc: true
        vpc_id: vpc-123
`))
	assert.ErrorIs(t, Validate(f), ErrMissingRequiredField)
}

func TestValidate_NATGatewaysOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      networking:
        nat_gateways: 4
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_InvalidThroughputMode(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      storage:
        throughput_mode: turbo
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_InvalidDatabaseType(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      database:
        type: mysql
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_DatabaseRetentionOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      database:
        backup_retention_days: 40
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_AuroraCapacityInverted(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      database:
        aurora_serverless:
          min_capacity: 4
          max_capacity: 1
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_InvalidAccessType(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      access:
        type: vpn
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_InvalidTunnelDomain(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      access:
        cloudflare:
          tunnel_domain: "-bad-.example.com"
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_ValidTunnelDomain(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      access:
        cloudflare:
          tunnel_domain: "flow.example.com"
`))
	assert.NoError(t, Validate(f))
}

func TestValidate_OAuthRequiresProvider(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      auth:
        oauth_enabled: true
`))
	assert.ErrorIs(t, Validate(f), ErrMissingRequiredField)
}

func TestValidate_InvalidOAuthProvider(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      auth:
        oauth_provider: facebook
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_LogRetentionOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      monitoring:
        log_retention_days: 400
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_CrossRegionBackupRequiresRegions(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      backup:
        cross_region_backup: true
`))
	assert.ErrorIs(t, Validate(f), ErrMissingRequiredField)
}

func TestValidate_HealthCheckIntervalOutOfRange(t *testing.T) {
	f := decodeDoc(t, docWithSettings(`
      high_availability:
        health_check_interval: 5
`))
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

// =============================================================================
// Stack Preset Validation
// =============================================================================

func TestValidate_UnknownComponent(t *testing.T) {
	doc := minimalDoc + `
stacks:
  custom:
    components: [network, warehouse]
`
	f := decodeDoc(t, doc)
	err := Validate(f)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Contains(t, err.Error(), "warehouse")
}

func TestValidate_InheritFromUndefined(t *testing.T) {
	doc := minimalDoc + `
stacks:
  child:
    components: [network]
    inherit_from: ghost
`
	f := decodeDoc(t, doc)
	assert.ErrorIs(t, Validate(f), ErrUnknownStackType)
}

func TestValidate_PresetCycle(t *testing.T) {
	doc := minimalDoc + `
stacks:
  a:
    components: [network]
    inherit_from: b
  b:
    components: [network]
    inherit_from: a
`
	f := decodeDoc(t, doc)
	assert.ErrorIs(t, Validate(f), ErrPresetCycle)
}

func TestValidate_SelfInheritance(t *testing.T) {
	doc := minimalDoc + `
stacks:
  a:
    components: [network]
    inherit_from: a
`
	f := decodeDoc(t, doc)
	assert.ErrorIs(t, Validate(f), ErrPresetCycle)
}

func TestValidate_PresetSettingsChecked(t *testing.T) {
	doc := minimalDoc + `
stacks:
  tuned:
    components: [compute]
    settings:
      fargate:
        cpu: 256
        memory: 9999
`
	f := decodeDoc(t, doc)
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

func TestValidate_DefaultsChecked(t *testing.T) {
	doc := minimalDoc + `
defaults:
  scaling:
    target_cpu_utilization: 5
`
	f := decodeDoc(t, doc)
	assert.ErrorIs(t, Validate(f), ErrSchemaViolation)
}

// =============================================================================
// ValidateEnvironment Tests
// =============================================================================

func TestValidateEnvironment_Known(t *testing.T) {
	f := decodeDoc(t, minimalDoc)
	env, err := ValidateEnvironment(f, "dev")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", env.Region)
}

func TestValidateEnvironment_Unknown(t *testing.T) {
	f := decodeDoc(t, minimalDoc)
	_, err := ValidateEnvironment(f, "staging")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
	assert.Contains(t, err.Error(), "dev")
}
