package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// docFromYAML parses a YAML document into the untyped tree form the loader
// produces.
func docFromYAML(t *testing.T, doc string) map[string]any {
	t.Helper()
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &tree))
	return tree
}

const minimalDoc = `
global:
  project_name: flow
environments:
  dev:
    account: "111111111111"
    region: us-east-1
`

// =============================================================================
// Decode Tests
// =============================================================================

func TestDecode_Minimal(t *testing.T) {
	f, err := Decode(docFromYAML(t, minimalDoc))
	require.NoError(t, err)

	assert.Equal(t, "flow", f.Global.ProjectName)
	require.Contains(t, f.Environments, "dev")
	assert.Equal(t, "111111111111", f.Environments["dev"].Account)
	assert.Equal(t, "us-east-1", f.Environments["dev"].Region)
}

func TestDecode_FullDocument(t *testing.T) {
	doc := `
global:
  project_name: flow
  organization: acme
  tags:
    Team: platform
  cost_allocation_tags: [Team]
defaults:
  fargate:
    cpu: 512
    memory: 1024
environments:
  production:
    account: "222222222222"
    region: eu-west-1
    multi_region:
      enabled: true
    settings:
      database:
        type: postgres
    tags:
      Tier: prod
stacks:
  standard:
    description: Full stack
    components: [network, storage, database, compute, access, monitoring]
    settings:
      monitoring:
        log_retention_days: 90
shared_resources:
  networking:
    transit_gateway: tgw-12345
`
	f, err := Decode(docFromYAML(t, doc))
	require.NoError(t, err)

	assert.Equal(t, "acme", f.Global.Organization)
	assert.Equal(t, []string{"Team"}, f.Global.CostAllocationTags)
	assert.NotNil(t, f.Defaults)
	assert.True(t, f.Environments["production"].MultiRegion.Enabled)
	assert.Equal(t, "prod", f.Environments["production"].Tags["Tier"])
	assert.Len(t, f.Stacks["standard"].Components, 6)
	assert.Equal(t, "tgw-12345", f.SharedResources.Networking["transit_gateway"])
}

func TestDecode_UnknownTopLevelKey(t *testing.T) {
	tree := docFromYAML(t, minimalDoc)
	tree["gloabl"] = map[string]any{}

	_, err := Decode(tree)
	assert.ErrorIs(t, err, ErrUnknownField)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "gloabl", schemaErr.Path)
}

func TestDecode_UnknownNestedKey(t *testing.T) {
	doc := `
global:
  project_name: flow
  projcet_name: typo
environments:
  dev:
    account: "1"
    region: us-east-1
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestDecode_MissingProjectName(t *testing.T) {
	doc := `
global:
  organization: acme
environments:
  dev:
    account: "1"
    region: us-east-1
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestDecode_NoEnvironments(t *testing.T) {
	doc := `
global:
  project_name: flow
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestDecode_EnvironmentMissingAccount(t *testing.T) {
	doc := `
global:
  project_name: flow
environments:
  dev:
    region: us-east-1
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "environments.dev.account", schemaErr.Path)
}

func TestDecode_EnvironmentMissingRegion(t *testing.T) {
	doc := `
global:
  project_name: flow
environments:
  dev:
    account: "1"
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestDecode_TypeMismatch(t *testing.T) {
	doc := `
global:
  project_name: flow
environments:
  dev:
    account: "1"
    region: us-east-1
stacks: not-a-mapping
`
	_, err := Decode(docFromYAML(t, doc))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestDecode_SettingsStayUntyped(t *testing.T) {
	doc := `
global:
  project_name: flow
environments:
  dev:
    account: "1"
    region: us-east-1
    settings:
      fargate:
        cpu: 512
`
	f, err := Decode(docFromYAML(t, doc))
	require.NoError(t, err)

	settings := f.Environments["dev"].Settings
	fargate, ok := settings["fargate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 512, fargate["cpu"])
}
