// Package config implements the configuration core: schema validation of the
// untyped document tree, deep merging of layered sources, and resolution of
// one (environment, stack type) pair into a single deployment configuration.
// All functions here are pure - loading documents from disk lives in
// internal/shell/configfile.
package config

// =============================================================================
// Enumerations
// =============================================================================

// DatabaseType selects the application database backend.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// AccessType selects how the application is exposed.
type AccessType string

const (
	AccessAPIGateway AccessType = "api_gateway"
	AccessCloudflare AccessType = "cloudflare"
)

// DeploymentType selects the infrastructure target for an environment.
type DeploymentType string

const (
	DeployAWS    DeploymentType = "aws"
	DeployDocker DeploymentType = "docker"
)

// AuthProvider identifies a supported OAuth provider.
type AuthProvider string

const (
	AuthGoogle  AuthProvider = "google"
	AuthGitHub  AuthProvider = "github"
	AuthOkta    AuthProvider = "okta"
	AuthAzureAD AuthProvider = "azure_ad"
)

// =============================================================================
// Settings Sections
// =============================================================================

// FargateConfig holds compute task sizing.
type FargateConfig struct {
	CPU            int    `mapstructure:"cpu" yaml:"cpu"`
	Memory         int    `mapstructure:"memory" yaml:"memory"`
	SpotPercentage *int   `mapstructure:"spot_percentage" yaml:"spot_percentage"`
	AppVersion     string `mapstructure:"app_version" yaml:"app_version"`
}

// ScalingConfig holds auto-scaling bounds.
type ScalingConfig struct {
	MinTasks             int `mapstructure:"min_tasks" yaml:"min_tasks"`
	MaxTasks             int `mapstructure:"max_tasks" yaml:"max_tasks"`
	TargetCPUUtilization int `mapstructure:"target_cpu_utilization" yaml:"target_cpu_utilization"`
	ScaleInCooldown      int `mapstructure:"scale_in_cooldown" yaml:"scale_in_cooldown"`
	ScaleOutCooldown     int `mapstructure:"scale_out_cooldown" yaml:"scale_out_cooldown"`
}

// NetworkingConfig holds network settings.
type NetworkingConfig struct {
	UseExistingVPC    bool     `mapstructure:"use_existing_vpc" yaml:"use_existing_vpc"`
	VPCID             string   `mapstructure:"vpc_id" yaml:"vpc_id"`
	VPCCIDR           string   `mapstructure:"vpc_cidr" yaml:"vpc_cidr"`
	SubnetIDs         []string `mapstructure:"subnet_ids" yaml:"subnet_ids"`
	AvailabilityZones []string `mapstructure:"availability_zones" yaml:"availability_zones"`
	NATGateways       int      `mapstructure:"nat_gateways" yaml:"nat_gateways"`
}

// StorageConfig holds shared-filesystem settings.
type StorageConfig struct {
	Encrypted      *bool  `mapstructure:"encrypted" yaml:"encrypted"`
	LifecycleDays  int    `mapstructure:"lifecycle_days" yaml:"lifecycle_days"`
	ThroughputMode string `mapstructure:"throughput_mode" yaml:"throughput_mode"`
}

// DatabaseConfig holds database settings. Secrets are referenced by name
// only - the value never enters the configuration.
type DatabaseConfig struct {
	Type                 DatabaseType       `mapstructure:"type" yaml:"type"`
	UseExisting          bool               `mapstructure:"use_existing" yaml:"use_existing"`
	ConnectionSecretName string             `mapstructure:"connection_secret_name" yaml:"connection_secret_name"`
	InstanceClass        string             `mapstructure:"instance_class" yaml:"instance_class"`
	MultiAZ              bool               `mapstructure:"multi_az" yaml:"multi_az"`
	AuroraServerless     map[string]float64 `mapstructure:"aurora_serverless" yaml:"aurora_serverless"`
	BackupRetentionDays  int                `mapstructure:"backup_retention_days" yaml:"backup_retention_days"`
}

// CloudflareConfig holds Cloudflare Tunnel settings.
type CloudflareConfig struct {
	Enabled               bool     `mapstructure:"enabled" yaml:"enabled"`
	TunnelTokenSecretName string   `mapstructure:"tunnel_token_secret_name" yaml:"tunnel_token_secret_name"`
	TunnelName            string   `mapstructure:"tunnel_name" yaml:"tunnel_name"`
	TunnelDomain          string   `mapstructure:"tunnel_domain" yaml:"tunnel_domain"`
	AccessEnabled         bool     `mapstructure:"access_enabled" yaml:"access_enabled"`
	AccessAllowedEmails   []string `mapstructure:"access_allowed_emails" yaml:"access_allowed_emails"`
	AccessAllowedDomains  []string `mapstructure:"access_allowed_domains" yaml:"access_allowed_domains"`
}

// AccessConfig holds API access settings. Exactly one access variant is
// active per resolved environment: api_gateway or cloudflare.
type AccessConfig struct {
	Type               AccessType        `mapstructure:"type" yaml:"type"`
	DomainName         string            `mapstructure:"domain_name" yaml:"domain_name"`
	CloudFrontEnabled  *bool             `mapstructure:"cloudfront_enabled" yaml:"cloudfront_enabled"`
	WAFEnabled         bool              `mapstructure:"waf_enabled" yaml:"waf_enabled"`
	APIGatewayThrottle int               `mapstructure:"api_gateway_throttle" yaml:"api_gateway_throttle"`
	CORSOrigins        []string          `mapstructure:"cors_origins" yaml:"cors_origins"`
	IPWhitelist        []string          `mapstructure:"ip_whitelist" yaml:"ip_whitelist"`
	Cloudflare         *CloudflareConfig `mapstructure:"cloudflare" yaml:"cloudflare,omitempty"`
}

// AuthConfig holds application authentication settings.
type AuthConfig struct {
	BasicAuthEnabled    *bool        `mapstructure:"basic_auth_enabled" yaml:"basic_auth_enabled"`
	OAuthEnabled        bool         `mapstructure:"oauth_enabled" yaml:"oauth_enabled"`
	OAuthProvider       AuthProvider `mapstructure:"oauth_provider" yaml:"oauth_provider"`
	MFARequired         bool         `mapstructure:"mfa_required" yaml:"mfa_required"`
	AllowedEmailDomains []string     `mapstructure:"allowed_email_domains" yaml:"allowed_email_domains"`
}

// MonitoringConfig holds monitoring and logging settings.
type MonitoringConfig struct {
	LogRetentionDays        int    `mapstructure:"log_retention_days" yaml:"log_retention_days"`
	AlarmEmail              string `mapstructure:"alarm_email" yaml:"alarm_email"`
	EnableContainerInsights *bool  `mapstructure:"enable_container_insights" yaml:"enable_container_insights"`
	EnableTracing           bool   `mapstructure:"enable_tracing" yaml:"enable_tracing"`
	MetricsNamespace        string `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
}

// BackupConfig holds backup policy settings.
type BackupConfig struct {
	Enabled           *bool    `mapstructure:"enabled" yaml:"enabled"`
	RetentionDays     int      `mapstructure:"retention_days" yaml:"retention_days"`
	CrossRegionBackup bool     `mapstructure:"cross_region_backup" yaml:"cross_region_backup"`
	BackupRegions     []string `mapstructure:"backup_regions" yaml:"backup_regions"`
}

// HighAvailabilityConfig holds availability settings.
type HighAvailabilityConfig struct {
	MultiAZ             bool  `mapstructure:"multi_az" yaml:"multi_az"`
	AutoScalingEnabled  *bool `mapstructure:"auto_scaling_enabled" yaml:"auto_scaling_enabled"`
	HealthCheckInterval int   `mapstructure:"health_check_interval" yaml:"health_check_interval"`
	UnhealthyThreshold  int   `mapstructure:"unhealthy_threshold" yaml:"unhealthy_threshold"`
}

// DockerConfig holds local container-engine settings.
type DockerConfig struct {
	ComposeFile string   `mapstructure:"compose_file" yaml:"compose_file"`
	Image       string   `mapstructure:"image" yaml:"image"`
	Port        int      `mapstructure:"port" yaml:"port"`
	Profiles    []string `mapstructure:"profiles" yaml:"profiles,omitempty"`
}

// Settings is the environment settings sub-tree. Every section is optional
// in the document; the resolver fills missing sections with defaults.
type Settings struct {
	DeploymentType   DeploymentType          `mapstructure:"deployment_type" yaml:"deployment_type"`
	Docker           *DockerConfig           `mapstructure:"docker" yaml:"docker,omitempty"`
	Fargate          *FargateConfig          `mapstructure:"fargate" yaml:"fargate"`
	Scaling          *ScalingConfig          `mapstructure:"scaling" yaml:"scaling"`
	Networking       *NetworkingConfig       `mapstructure:"networking" yaml:"networking"`
	Storage          *StorageConfig          `mapstructure:"storage" yaml:"storage"`
	Access           *AccessConfig           `mapstructure:"access" yaml:"access"`
	Database         *DatabaseConfig         `mapstructure:"database" yaml:"database"`
	Auth             *AuthConfig             `mapstructure:"auth" yaml:"auth"`
	Monitoring       *MonitoringConfig       `mapstructure:"monitoring" yaml:"monitoring"`
	Backup           *BackupConfig           `mapstructure:"backup" yaml:"backup"`
	HighAvailability *HighAvailabilityConfig `mapstructure:"high_availability" yaml:"high_availability"`
	Features         map[string]any          `mapstructure:"features" yaml:"features,omitempty"`
}

// =============================================================================
// Document Structure
// =============================================================================

// MultiRegionConfig describes optional multi-region deployment.
type MultiRegionConfig struct {
	Enabled bool             `mapstructure:"enabled" yaml:"enabled"`
	Regions []map[string]any `mapstructure:"regions" yaml:"regions,omitempty"`
}

// Environment is one named deployment target.
type Environment struct {
	Account     string             `mapstructure:"account" yaml:"account"`
	Region      string             `mapstructure:"region" yaml:"region"`
	MultiRegion *MultiRegionConfig `mapstructure:"multi_region" yaml:"multi_region,omitempty"`
	Settings    map[string]any     `mapstructure:"settings" yaml:"settings"`
	Tags        map[string]string  `mapstructure:"tags" yaml:"tags,omitempty"`
}

// StackPreset is a named bundle of component choices and setting overrides.
type StackPreset struct {
	Description string         `mapstructure:"description" yaml:"description"`
	Components  []string       `mapstructure:"components" yaml:"components"`
	Settings    map[string]any `mapstructure:"settings" yaml:"settings,omitempty"`
	InheritFrom string         `mapstructure:"inherit_from" yaml:"inherit_from,omitempty"`
}

// SharedResources references resources shared across environments, by ID.
type SharedResources struct {
	Security   map[string]string `mapstructure:"security" yaml:"security,omitempty"`
	Networking map[string]string `mapstructure:"networking" yaml:"networking,omitempty"`
	Storage    map[string]string `mapstructure:"storage" yaml:"storage,omitempty"`
}

// Global holds project-wide identifiers and tags.
type Global struct {
	ProjectName        string            `mapstructure:"project_name" yaml:"project_name"`
	Organization       string            `mapstructure:"organization" yaml:"organization"`
	Tags               map[string]string `mapstructure:"tags" yaml:"tags,omitempty"`
	CostAllocationTags []string          `mapstructure:"cost_allocation_tags" yaml:"cost_allocation_tags,omitempty"`
}

// File is the typed form of the whole configuration document.
//
// The environment settings and the defaults/preset settings sub-trees stay
// untyped here: the resolver deep-merges them as raw maps before decoding
// the merged result into Settings, so precedence is applied on the source
// trees rather than on half-populated structs.
type File struct {
	Global          Global                 `mapstructure:"global" yaml:"global"`
	Defaults        map[string]any         `mapstructure:"defaults" yaml:"defaults,omitempty"`
	Environments    map[string]Environment `mapstructure:"environments" yaml:"environments"`
	Stacks          map[string]StackPreset `mapstructure:"stacks" yaml:"stacks,omitempty"`
	SharedResources *SharedResources       `mapstructure:"shared_resources" yaml:"shared_resources,omitempty"`
}

// EnvironmentNames returns the defined environment names, sorted.
func (f *File) EnvironmentNames() []string {
	return sortedKeys(f.Environments)
}

// StackTypeNames returns the defined stack preset names, sorted.
func (f *File) StackTypeNames() []string {
	return sortedKeys(f.Stacks)
}
