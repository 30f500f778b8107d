package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultFargateCPU     = 256
	DefaultFargateMemory  = 512
	DefaultSpotPercentage = 80

	DefaultAppVersion = "1.94.1"
	DefaultAppImage   = "n8nio/n8n:" + DefaultAppVersion
	DefaultAppPort    = 5678

	DefaultVPCCIDR          = "10.0.0.0/16"
	DefaultComposeFile      = "docker/docker-compose.yml"
	DefaultMetricsNamespace = "Flow/Serverless"
)

// =============================================================================
// Resolved Configuration
// =============================================================================

// Resolved is the fully merged, validated configuration for one
// (environment, stack type) pair. It is the single source of truth for a
// deployment run and is never mutated after Resolve returns.
type Resolved struct {
	Project      string `yaml:"project"`
	Organization string `yaml:"organization,omitempty"`
	Environment  string `yaml:"environment"`
	StackType    string `yaml:"stack_type,omitempty"`
	Account      string `yaml:"account"`
	Region       string `yaml:"region"`

	// Components is the active preset's component set, nil when no stack
	// type was requested (the planner then uses the full default set).
	Components []string `yaml:"components,omitempty"`

	Settings Settings `yaml:"settings"`

	// Tags are the merged custom tags (global first, environment overrides).
	Tags map[string]string `yaml:"tags,omitempty"`

	MultiRegion     *MultiRegionConfig `yaml:"multi_region,omitempty"`
	SharedResources *SharedResources   `yaml:"shared_resources,omitempty"`
}

// Canonical returns a deterministic YAML rendering of the resolved
// configuration. Two Resolved values produced from identical inputs render
// to identical bytes (yaml.v3 sorts map keys).
func (r *Resolved) Canonical() ([]byte, error) {
	return yaml.Marshal(r)
}

// IsProduction reports whether this is a production environment.
func (r *Resolved) IsProduction() bool {
	switch strings.ToLower(r.Environment) {
	case "production", "prod":
		return true
	}
	return false
}

// IsLocal reports whether this is the local environment.
func (r *Resolved) IsLocal() bool {
	return strings.ToLower(r.Environment) == "local"
}

// ComponentIncluded reports whether the active component set includes the
// named component. With no stack type every component is included.
func (r *Resolved) ComponentIncluded(name string) bool {
	if r.Components == nil {
		return true
	}
	for _, c := range r.Components {
		if c == name {
			return true
		}
	}
	return false
}

// CostAllocationTags filters the merged tag set down to the keys listed in
// global.cost_allocation_tags.
func (r *Resolved) CostAllocationTags(global Global) map[string]string {
	out := map[string]string{}
	for _, key := range global.CostAllocationTags {
		if v, ok := r.Tags[key]; ok {
			out[key] = v
		}
	}
	return out
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve merges all configuration layers for one environment into a single
// Resolved value and checks cross-field consistency.
//
// Merge order, lowest to highest precedence:
//
//	global defaults → stack preset chain (parent before child) →
//	environment settings → caller overrides
//
// Resolve is a pure function: identical inputs always produce an identical
// Resolved value (and identical Canonical bytes).
func Resolve(f *File, environment, stackType string, overrides map[string]any) (*Resolved, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	env, ok := f.Environments[environment]
	if !ok {
		return nil, fmt.Errorf("%w: %q (defined: %v)", ErrUnknownEnvironment, environment, f.EnvironmentNames())
	}

	merged := map[string]any{}
	if f.Defaults != nil {
		merged = DeepMerge(merged, f.Defaults)
	}

	var components []string
	if stackType != "" {
		if _, ok := f.Stacks[stackType]; !ok {
			return nil, fmt.Errorf("%w: %q (defined: %v)", ErrUnknownStackType, stackType, f.StackTypeNames())
		}
		chain, err := presetChain(f.Stacks, stackType)
		if err != nil {
			return nil, err
		}
		for _, preset := range chain {
			if preset.Settings != nil {
				merged = DeepMerge(merged, preset.Settings)
			}
			// The child's component set replaces the parent's wholesale.
			if preset.Components != nil {
				components = append([]string(nil), preset.Components...)
			}
		}
	}

	if env.Settings != nil {
		merged = DeepMerge(merged, env.Settings)
	}
	if overrides != nil {
		merged = DeepMerge(merged, overrides)
	}

	settings, err := decodeSettings(merged, "resolved.settings")
	if err != nil {
		return nil, err
	}
	normalizeSettings(settings)

	if err := validateSettings(settings, "resolved.settings"); err != nil {
		return nil, err
	}
	if err := checkConsistency(settings, environment); err != nil {
		return nil, err
	}

	resolved := &Resolved{
		Project:         f.Global.ProjectName,
		Organization:    f.Global.Organization,
		Environment:     environment,
		StackType:       stackType,
		Account:         env.Account,
		Region:          env.Region,
		Components:      components,
		Settings:        *settings,
		Tags:            mergeCustomTags(f.Global.Tags, env.Tags, environment),
		MultiRegion:     env.MultiRegion,
		SharedResources: f.SharedResources,
	}
	return resolved, nil
}

// presetChain resolves a preset's inheritance chain, root ancestor first.
// Cycles are detected with an explicit seen-set.
func presetChain(stacks map[string]StackPreset, name string) ([]StackPreset, error) {
	var chain []StackPreset
	seen := map[string]bool{}

	for current := name; current != ""; {
		if seen[current] {
			return nil, fmt.Errorf("%w: %q", ErrPresetCycle, current)
		}
		seen[current] = true

		preset, ok := stacks[current]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStackType, current)
		}
		// Prepend so the root ancestor is applied first.
		chain = append([]StackPreset{preset}, chain...)
		current = preset.InheritFrom
	}
	return chain, nil
}

// mergeCustomTags merges global and environment custom tags. Environment
// tags win. The "{{ environment }}" placeholder in global tag values is
// substituted with the environment name.
func mergeCustomTags(global, env map[string]string, environment string) map[string]string {
	out := map[string]string{}
	for k, v := range global {
		out[k] = strings.ReplaceAll(v, "{{ environment }}", environment)
	}
	for k, v := range env {
		out[k] = v
	}
	return out
}

// =============================================================================
// Normalization
// =============================================================================

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

// normalizeSettings fills every missing section and field with its default
// so the resolved configuration is complete and canonical. The defaults
// match the documented platform defaults; normalization is what makes
// Canonical output byte-stable across runs.
func normalizeSettings(s *Settings) {
	if s.DeploymentType == "" {
		s.DeploymentType = DeployAWS
	}

	if s.Fargate == nil {
		s.Fargate = &FargateConfig{}
	}
	if s.Fargate.CPU == 0 {
		s.Fargate.CPU = DefaultFargateCPU
	}
	if s.Fargate.Memory == 0 {
		s.Fargate.Memory = DefaultFargateMemory
	}
	if s.Fargate.SpotPercentage == nil {
		s.Fargate.SpotPercentage = intPtr(DefaultSpotPercentage)
	}
	if s.Fargate.AppVersion == "" {
		s.Fargate.AppVersion = DefaultAppVersion
	}

	if s.Scaling == nil {
		s.Scaling = &ScalingConfig{}
	}
	if s.Scaling.MinTasks == 0 {
		s.Scaling.MinTasks = 1
	}
	if s.Scaling.MaxTasks == 0 {
		s.Scaling.MaxTasks = s.Scaling.MinTasks
	}
	if s.Scaling.TargetCPUUtilization == 0 {
		s.Scaling.TargetCPUUtilization = 70
	}
	if s.Scaling.ScaleInCooldown == 0 {
		s.Scaling.ScaleInCooldown = 300
	}
	if s.Scaling.ScaleOutCooldown == 0 {
		s.Scaling.ScaleOutCooldown = 60
	}

	if s.Networking == nil {
		s.Networking = &NetworkingConfig{}
	}
	if s.Networking.VPCCIDR == "" {
		s.Networking.VPCCIDR = DefaultVPCCIDR
	}

	if s.Storage == nil {
		s.Storage = &StorageConfig{}
	}
	if s.Storage.Encrypted == nil {
		s.Storage.Encrypted = boolPtr(true)
	}
	if s.Storage.LifecycleDays == 0 {
		s.Storage.LifecycleDays = 30
	}
	if s.Storage.ThroughputMode == "" {
		s.Storage.ThroughputMode = "bursting"
	}

	if s.Access == nil {
		s.Access = &AccessConfig{}
	}
	if s.Access.Type == "" {
		s.Access.Type = AccessAPIGateway
	}
	if s.Access.CloudFrontEnabled == nil {
		s.Access.CloudFrontEnabled = boolPtr(true)
	}
	if s.Access.APIGatewayThrottle == 0 {
		s.Access.APIGatewayThrottle = 1000
	}
	if s.Access.CORSOrigins == nil {
		s.Access.CORSOrigins = []string{"*"}
	}
	if s.Access.Type == AccessCloudflare {
		if s.Access.Cloudflare == nil {
			s.Access.Cloudflare = &CloudflareConfig{}
		}
		s.Access.Cloudflare.Enabled = true
	}

	if s.Database == nil {
		s.Database = &DatabaseConfig{}
	}
	if s.Database.Type == "" {
		s.Database.Type = DatabaseSQLite
	}
	if s.Database.BackupRetentionDays == 0 {
		s.Database.BackupRetentionDays = 7
	}

	if s.Auth == nil {
		s.Auth = &AuthConfig{}
	}
	if s.Auth.BasicAuthEnabled == nil {
		s.Auth.BasicAuthEnabled = boolPtr(true)
	}

	if s.Monitoring == nil {
		s.Monitoring = &MonitoringConfig{}
	}
	if s.Monitoring.LogRetentionDays == 0 {
		s.Monitoring.LogRetentionDays = 30
	}
	if s.Monitoring.EnableContainerInsights == nil {
		s.Monitoring.EnableContainerInsights = boolPtr(true)
	}
	if s.Monitoring.MetricsNamespace == "" {
		s.Monitoring.MetricsNamespace = DefaultMetricsNamespace
	}

	if s.Backup == nil {
		s.Backup = &BackupConfig{}
	}
	if s.Backup.Enabled == nil {
		s.Backup.Enabled = boolPtr(true)
	}
	if s.Backup.RetentionDays == 0 {
		s.Backup.RetentionDays = 7
	}

	if s.HighAvailability == nil {
		s.HighAvailability = &HighAvailabilityConfig{}
	}
	if s.HighAvailability.AutoScalingEnabled == nil {
		s.HighAvailability.AutoScalingEnabled = boolPtr(true)
	}
	if s.HighAvailability.HealthCheckInterval == 0 {
		s.HighAvailability.HealthCheckInterval = 30
	}
	if s.HighAvailability.UnhealthyThreshold == 0 {
		s.HighAvailability.UnhealthyThreshold = 2
	}

	if s.DeploymentType == DeployDocker && s.Docker == nil {
		s.Docker = &DockerConfig{}
	}
	if s.Docker != nil {
		if s.Docker.ComposeFile == "" {
			s.Docker.ComposeFile = DefaultComposeFile
		}
		if s.Docker.Image == "" {
			s.Docker.Image = DefaultAppImage
		}
		if s.Docker.Port == 0 {
			s.Docker.Port = DefaultAppPort
		}
	}
}

// =============================================================================
// Cross-Field Consistency
// =============================================================================

// checkConsistency enforces the rules that only hold (or fail) on the fully
// merged configuration. Every violation is an ErrInconsistentConfig with the
// offending path.
func checkConsistency(s *Settings, environment string) error {
	ac := s.Access

	// Exactly one access variant may be active. Cloudflare settings under an
	// api_gateway access type are a configuration mix-up, never ignored.
	if ac.Type == AccessAPIGateway && ac.Cloudflare != nil && ac.Cloudflare.Enabled {
		return NewSchemaError("resolved.settings.access", "",
			fmt.Errorf("%w: cloudflare tunnel enabled but access type is api_gateway", ErrInconsistentConfig))
	}

	if ac.Type == AccessCloudflare {
		cf := ac.Cloudflare
		if cf.TunnelTokenSecretName == "" {
			return NewSchemaError("resolved.settings.access.cloudflare.tunnel_token_secret_name", "",
				fmt.Errorf("%w: tunnel token secret name is required when cloudflare access is enabled", ErrInconsistentConfig))
		}
		if cf.AccessEnabled && len(cf.AccessAllowedEmails) == 0 && len(cf.AccessAllowedDomains) == 0 {
			return NewSchemaError("resolved.settings.access.cloudflare", "",
				fmt.Errorf("%w: access_enabled requires at least one allowed email or domain", ErrInconsistentConfig))
		}
	}

	if s.Database.Type == DatabasePostgres {
		if s.Database.UseExisting && s.Database.ConnectionSecretName == "" {
			return NewSchemaError("resolved.settings.database.connection_secret_name", "",
				fmt.Errorf("%w: use_existing requires a connection secret name", ErrInconsistentConfig))
		}
		wantsMultiAZ := s.Database.MultiAZ || s.HighAvailability.MultiAZ
		if wantsMultiAZ && strings.ToLower(environment) == "local" {
			return NewSchemaError("resolved.settings.database.multi_az", "",
				fmt.Errorf("%w: multi-AZ postgres is not available in the local environment", ErrInconsistentConfig))
		}
	}

	if s.Networking.UseExistingVPC {
		if s.Networking.VPCID == "" || len(s.Networking.SubnetIDs) == 0 {
			return NewSchemaError("resolved.settings.networking", "",
				fmt.Errorf("%w: use_existing_vpc requires vpc_id and at least one subnet", ErrInconsistentConfig))
		}
	}

	return nil
}
