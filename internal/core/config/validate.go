package config

import (
	"fmt"
	"regexp"
)

// =============================================================================
// Allowed Value Tables
// =============================================================================

// fargateCPUMemory lists valid CPU/memory pairs, mirroring the compute
// platform's published combinations. Memory values are in MiB.
var fargateCPUMemory = map[int][]int{
	256:   {512, 1024, 2048},
	512:   {1024, 2048, 3072, 4096},
	1024:  memoryRange(2048, 8192, 1024),
	2048:  memoryRange(4096, 16384, 1024),
	4096:  memoryRange(8192, 30720, 1024),
	8192:  memoryRange(16384, 61440, 4096),
	16384: memoryRange(32768, 122880, 8192),
}

func memoryRange(from, to, step int) []int {
	var out []int
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

// validComponents is the closed set of component kinds a stack preset may
// list. The planner interprets nothing outside this set.
var validComponents = map[string]bool{
	"network":    true,
	"storage":    true,
	"database":   true,
	"compute":    true,
	"access":     true,
	"monitoring": true,
}

var validThroughputModes = map[string]bool{
	"":            true,
	"bursting":    true,
	"provisioned": true,
	"elastic":     true,
}

// tunnelDomainRegex validates a tunnel domain: alphanumeric labels separated
// by single dots, no leading/trailing hyphen, a real TLD at the end.
var tunnelDomainRegex = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9-_]*[a-zA-Z0-9])?` +
		`(\.[a-zA-Z0-9]([a-zA-Z0-9-_]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

// =============================================================================
// File Validation
// =============================================================================

// Validate performs semantic validation of a decoded File: every
// settings-shaped sub-tree (defaults, preset settings, environment settings)
// must strict-decode, enumerations and numeric bounds must hold, and preset
// inheritance must be acyclic. Cross-field rules that depend on merged
// values are checked later by Resolve.
func Validate(f *File) error {
	if f.Defaults != nil {
		s, err := decodeSettings(f.Defaults, "defaults")
		if err != nil {
			return err
		}
		if err := validateSettings(s, "defaults"); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(f.Stacks) {
		preset := f.Stacks[name]
		path := "stacks." + name
		for _, c := range preset.Components {
			if !validComponents[c] {
				return NewSchemaError(path+".components", "one of network|storage|database|compute|access|monitoring",
					fmt.Errorf("%w: unknown component %q", ErrSchemaViolation, c))
			}
		}
		if preset.InheritFrom != "" {
			if _, ok := f.Stacks[preset.InheritFrom]; !ok {
				return NewSchemaError(path+".inherit_from", "defined stack preset",
					fmt.Errorf("%w: %q", ErrUnknownStackType, preset.InheritFrom))
			}
		}
		if preset.Settings != nil {
			s, err := decodeSettings(preset.Settings, path+".settings")
			if err != nil {
				return err
			}
			if err := validateSettings(s, path+".settings"); err != nil {
				return err
			}
		}
	}

	// Reject inheritance cycles explicitly rather than relying on recursion
	// limits during resolution.
	for _, name := range sortedKeys(f.Stacks) {
		if _, err := presetChain(f.Stacks, name); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(f.Environments) {
		env := f.Environments[name]
		path := "environments." + name + ".settings"
		if env.Settings == nil {
			continue
		}
		s, err := decodeSettings(env.Settings, path)
		if err != nil {
			return err
		}
		if err := validateSettings(s, path); err != nil {
			return err
		}
	}

	return nil
}

// ValidateEnvironment validates the document and checks that the requested
// environment exists, returning its typed record.
func ValidateEnvironment(f *File, name string) (*Environment, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	env, ok := f.Environments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (defined: %v)", ErrUnknownEnvironment, name, f.EnvironmentNames())
	}
	return &env, nil
}

// =============================================================================
// Settings Validation
// =============================================================================

// validateSettings checks enumerations and numeric bounds on every section
// that is present. Sections may be partial (a preset override often sets a
// single field); only set fields are checked, except pairs that are only
// meaningful together (CPU/memory, min/max tasks) which are checked with
// defaults applied.
func validateSettings(s *Settings, path string) error {
	switch s.DeploymentType {
	case "", DeployAWS, DeployDocker:
	default:
		return NewSchemaError(path+".deployment_type", "aws or docker",
			fmt.Errorf("%w: %q", ErrSchemaViolation, s.DeploymentType))
	}

	if fg := s.Fargate; fg != nil {
		cpu, mem := fg.CPU, fg.Memory
		if cpu == 0 {
			cpu = DefaultFargateCPU
		}
		if mem == 0 {
			mem = DefaultFargateMemory
		}
		allowed, ok := fargateCPUMemory[cpu]
		if !ok {
			return NewSchemaError(path+".fargate.cpu", "one of the platform CPU sizes",
				fmt.Errorf("%w: %d", ErrSchemaViolation, cpu))
		}
		if !containsInt(allowed, mem) {
			return NewSchemaError(path+".fargate.memory", fmt.Sprintf("valid memory for cpu=%d", cpu),
				fmt.Errorf("%w: invalid CPU/memory combination %d/%d", ErrSchemaViolation, cpu, mem))
		}
		if fg.SpotPercentage != nil && (*fg.SpotPercentage < 0 || *fg.SpotPercentage > 100) {
			return NewSchemaError(path+".fargate.spot_percentage", "0-100",
				fmt.Errorf("%w: %d", ErrSchemaViolation, *fg.SpotPercentage))
		}
	}

	if sc := s.Scaling; sc != nil {
		if sc.MinTasks < 0 || sc.MaxTasks < 0 {
			return NewSchemaError(path+".scaling", "positive task counts", ErrSchemaViolation)
		}
		minTasks, maxTasks := sc.MinTasks, sc.MaxTasks
		if minTasks == 0 {
			minTasks = 1
		}
		if maxTasks == 0 {
			maxTasks = minTasks
		}
		if maxTasks < minTasks {
			return NewSchemaError(path+".scaling.max_tasks", fmt.Sprintf(">= min_tasks (%d)", minTasks),
				fmt.Errorf("%w: max_tasks (%d) must be >= min_tasks (%d)", ErrSchemaViolation, maxTasks, minTasks))
		}
		if sc.TargetCPUUtilization != 0 && (sc.TargetCPUUtilization < 10 || sc.TargetCPUUtilization > 90) {
			return NewSchemaError(path+".scaling.target_cpu_utilization", "10-90",
				fmt.Errorf("%w: %d", ErrSchemaViolation, sc.TargetCPUUtilization))
		}
		if sc.ScaleInCooldown != 0 && sc.ScaleInCooldown < 60 {
			return NewSchemaError(path+".scaling.scale_in_cooldown", ">= 60",
				fmt.Errorf("%w: %d", ErrSchemaViolation, sc.ScaleInCooldown))
		}
		if sc.ScaleOutCooldown != 0 && sc.ScaleOutCooldown < 60 {
			return NewSchemaError(path+".scaling.scale_out_cooldown", ">= 60",
				fmt.Errorf("%w: %d", ErrSchemaViolation, sc.ScaleOutCooldown))
		}
	}

	if nw := s.Networking; nw != nil {
		if nw.UseExistingVPC {
			if nw.VPCID == "" {
				return NewSchemaError(path+".networking.vpc_id", "non-empty when use_existing_vpc is true",
					ErrMissingRequiredField)
			}
			if len(nw.SubnetIDs) == 0 {
				return NewSchemaError(path+".networking.subnet_ids", "at least one subnet when use_existing_vpc is true",
					ErrMissingRequiredField)
			}
		}
		if nw.NATGateways < 0 || nw.NATGateways > 3 {
			return NewSchemaError(path+".networking.nat_gateways", "0-3",
				fmt.Errorf("%w: %d", ErrSchemaViolation, nw.NATGateways))
		}
	}

	if st := s.Storage; st != nil {
		if !validThroughputModes[st.ThroughputMode] {
			return NewSchemaError(path+".storage.throughput_mode", "bursting, provisioned or elastic",
				fmt.Errorf("%w: %q", ErrSchemaViolation, st.ThroughputMode))
		}
		if st.LifecycleDays < 0 {
			return NewSchemaError(path+".storage.lifecycle_days", ">= 0", ErrSchemaViolation)
		}
	}

	if db := s.Database; db != nil {
		switch db.Type {
		case "", DatabaseSQLite, DatabasePostgres:
		default:
			return NewSchemaError(path+".database.type", "sqlite or postgres",
				fmt.Errorf("%w: %q", ErrSchemaViolation, db.Type))
		}
		if db.BackupRetentionDays != 0 && (db.BackupRetentionDays < 1 || db.BackupRetentionDays > 35) {
			return NewSchemaError(path+".database.backup_retention_days", "1-35",
				fmt.Errorf("%w: %d", ErrSchemaViolation, db.BackupRetentionDays))
		}
		if as := db.AuroraServerless; as != nil {
			minCap, maxCap := as["min_capacity"], as["max_capacity"]
			if minCap > 0 && maxCap > 0 && maxCap < minCap {
				return NewSchemaError(path+".database.aurora_serverless", "max_capacity >= min_capacity",
					fmt.Errorf("%w: %g/%g", ErrSchemaViolation, minCap, maxCap))
			}
		}
	}

	if ac := s.Access; ac != nil {
		switch ac.Type {
		case "", AccessAPIGateway, AccessCloudflare:
		default:
			return NewSchemaError(path+".access.type", "api_gateway or cloudflare",
				fmt.Errorf("%w: %q", ErrSchemaViolation, ac.Type))
		}
		if ac.APIGatewayThrottle < 0 {
			return NewSchemaError(path+".access.api_gateway_throttle", ">= 1", ErrSchemaViolation)
		}
		if cf := ac.Cloudflare; cf != nil && cf.TunnelDomain != "" {
			if !tunnelDomainRegex.MatchString(cf.TunnelDomain) {
				return NewSchemaError(path+".access.cloudflare.tunnel_domain", "valid domain name",
					fmt.Errorf("%w: %q", ErrSchemaViolation, cf.TunnelDomain))
			}
		}
	}

	if au := s.Auth; au != nil {
		switch au.OAuthProvider {
		case "", AuthGoogle, AuthGitHub, AuthOkta, AuthAzureAD:
		default:
			return NewSchemaError(path+".auth.oauth_provider", "google, github, okta or azure_ad",
				fmt.Errorf("%w: %q", ErrSchemaViolation, au.OAuthProvider))
		}
		if au.OAuthEnabled && au.OAuthProvider == "" {
			return NewSchemaError(path+".auth.oauth_provider", "required when oauth_enabled is true",
				ErrMissingRequiredField)
		}
	}

	if mo := s.Monitoring; mo != nil {
		if mo.LogRetentionDays != 0 && (mo.LogRetentionDays < 1 || mo.LogRetentionDays > 365) {
			return NewSchemaError(path+".monitoring.log_retention_days", "1-365",
				fmt.Errorf("%w: %d", ErrSchemaViolation, mo.LogRetentionDays))
		}
	}

	if bk := s.Backup; bk != nil {
		if bk.RetentionDays != 0 && (bk.RetentionDays < 1 || bk.RetentionDays > 365) {
			return NewSchemaError(path+".backup.retention_days", "1-365",
				fmt.Errorf("%w: %d", ErrSchemaViolation, bk.RetentionDays))
		}
		if bk.CrossRegionBackup && len(bk.BackupRegions) == 0 {
			return NewSchemaError(path+".backup.backup_regions", "at least one region when cross_region_backup is true",
				ErrMissingRequiredField)
		}
	}

	if ha := s.HighAvailability; ha != nil {
		if ha.HealthCheckInterval != 0 && (ha.HealthCheckInterval < 10 || ha.HealthCheckInterval > 300) {
			return NewSchemaError(path+".high_availability.health_check_interval", "10-300",
				fmt.Errorf("%w: %d", ErrSchemaViolation, ha.HealthCheckInterval))
		}
		if ha.UnhealthyThreshold != 0 && (ha.UnhealthyThreshold < 2 || ha.UnhealthyThreshold > 10) {
			return NewSchemaError(path+".high_availability.unhealthy_threshold", "2-10",
				fmt.Errorf("%w: %d", ErrSchemaViolation, ha.UnhealthyThreshold))
		}
	}

	return nil
}

func containsInt(values []int, v int) bool {
	for _, e := range values {
		if e == v {
			return true
		}
	}
	return false
}
