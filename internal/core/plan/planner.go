package plan

import (
	"fmt"
	"sort"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
)

// =============================================================================
// Topology Planning
// =============================================================================

// Plan inspects a resolved configuration and produces the ordered list of
// component descriptors to build.
//
// Inclusion rules:
//   - network is elided only when networking.use_existing_vpc is true; its
//     outputs are then synthesized from the supplied IDs instead of built.
//   - database is elided when the database type is sqlite, and substituted
//     (not built) when an existing instance is referenced by secret name.
//   - monitoring is elided when the active stack preset's component set
//     excludes it.
//   - access always carries exactly one variant, api_gateway or cloudflare.
//
// The returned order is a topological sort of the declared dependencies,
// with the fixed layer order (network, storage, database, compute, access,
// monitoring) as the deterministic tie-break.
//
// Plan fails with ErrUnsatisfiableTopology when a planned component depends
// on a component that is neither planned nor substituted.
func Plan(r *config.Resolved) ([]Descriptor, error) {
	s := r.Settings

	planned := map[Kind]bool{
		KindNetwork:    !s.Networking.UseExistingVPC,
		KindStorage:    r.ComponentIncluded(string(KindStorage)),
		KindDatabase:   s.Database.Type == config.DatabasePostgres && !s.Database.UseExisting && r.ComponentIncluded(string(KindDatabase)),
		KindCompute:    r.ComponentIncluded(string(KindCompute)),
		KindAccess:     r.ComponentIncluded(string(KindAccess)),
		KindMonitoring: r.ComponentIncluded(string(KindMonitoring)),
	}

	// Substituted kinds are not built, but their outputs are synthesized
	// from configuration, so dependents remain satisfiable.
	substituted := map[Kind]bool{
		KindNetwork:  s.Networking.UseExistingVPC,
		KindDatabase: s.Database.Type == config.DatabasePostgres && s.Database.UseExisting,
	}

	var descriptors []Descriptor
	for _, kind := range kindOrder {
		if !planned[kind] {
			continue
		}
		desc := Descriptor{
			Kind:      kind,
			DependsOn: dependenciesFor(kind, r, planned, substituted),
			Settings:  settingsSlice(kind, r),
		}
		if kind == KindAccess {
			desc.Variant = accessVariant(r)
		}
		descriptors = append(descriptors, desc)
	}

	for _, desc := range descriptors {
		for _, dep := range desc.DependsOn {
			if !planned[dep] && !substituted[dep] {
				return nil, fmt.Errorf("%w: %s requires %s, which is elided with no substitute",
					ErrUnsatisfiableTopology, desc.Kind, dep)
			}
		}
	}

	return sortDescriptors(descriptors), nil
}

// dependenciesFor returns the declared upstream kinds for one component
// under the given resolved configuration.
func dependenciesFor(kind Kind, r *config.Resolved, planned, substituted map[Kind]bool) []Kind {
	usesDatabase := r.Settings.Database.Type == config.DatabasePostgres

	switch kind {
	case KindNetwork:
		return nil
	case KindStorage, KindDatabase:
		return []Kind{KindNetwork}
	case KindCompute:
		deps := []Kind{KindNetwork, KindStorage}
		if usesDatabase {
			deps = append(deps, KindDatabase)
		}
		return deps
	case KindAccess:
		return []Kind{KindCompute}
	case KindMonitoring:
		// Monitoring observes every component that exists in this plan.
		var deps []Kind
		for _, k := range kindOrder {
			if k == KindMonitoring {
				continue
			}
			if planned[k] || substituted[k] {
				deps = append(deps, k)
			}
		}
		return deps
	default:
		return nil
	}
}

// accessVariant returns the single active access variant.
func accessVariant(r *config.Resolved) string {
	if r.Settings.Access.Type == config.AccessCloudflare {
		return VariantCloudflare
	}
	return VariantAPIGateway
}

// settingsSlice extracts the resolved settings a component is built from.
func settingsSlice(kind Kind, r *config.Resolved) map[string]any {
	s := r.Settings
	switch kind {
	case KindNetwork:
		return map[string]any{"networking": s.Networking}
	case KindStorage:
		return map[string]any{"storage": s.Storage, "backup": s.Backup}
	case KindDatabase:
		return map[string]any{"database": s.Database, "backup": s.Backup}
	case KindCompute:
		slice := map[string]any{
			"fargate":           s.Fargate,
			"scaling":           s.Scaling,
			"high_availability": s.HighAvailability,
		}
		if s.Docker != nil {
			slice["docker"] = s.Docker
		}
		return slice
	case KindAccess:
		return map[string]any{"access": s.Access, "auth": s.Auth}
	case KindMonitoring:
		return map[string]any{"monitoring": s.Monitoring}
	default:
		return nil
	}
}

// =============================================================================
// Ordering
// =============================================================================

// sortDescriptors orders descriptors with Kahn's algorithm over the
// declared dependency edges. Ready components are picked in fixed layer
// order so the result is deterministic.
func sortDescriptors(descriptors []Descriptor) []Descriptor {
	byKind := make(map[Kind]Descriptor, len(descriptors))
	inDegree := make(map[Kind]int, len(descriptors))
	dependents := make(map[Kind][]Kind)

	for _, d := range descriptors {
		byKind[d.Kind] = d
		inDegree[d.Kind] = 0
	}
	for _, d := range descriptors {
		for _, dep := range d.DependsOn {
			// Edges to elided-but-substituted kinds are satisfied by
			// synthesized outputs, not by build order.
			if _, ok := byKind[dep]; !ok {
				continue
			}
			inDegree[d.Kind]++
			dependents[dep] = append(dependents[dep], d.Kind)
		}
	}

	var queue []Kind
	for kind, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, kind)
		}
	}

	var result []Descriptor
	for len(queue) > 0 {
		sort.Slice(queue, func(i, j int) bool { return kindRank[queue[i]] < kindRank[queue[j]] })
		kind := queue[0]
		queue = queue[1:]

		result = append(result, byKind[kind])
		for _, dependent := range dependents[kind] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// The dependency table is acyclic by construction; if a cycle is ever
	// introduced the remaining descriptors are appended in layer order.
	if len(result) < len(descriptors) {
		seen := make(map[Kind]bool, len(result))
		for _, d := range result {
			seen[d.Kind] = true
		}
		for _, d := range descriptors {
			if !seen[d.Kind] {
				result = append(result, d)
			}
		}
	}

	return result
}

// SynthesizedNetworkOutputs builds the network outputs for a plan where the
// network component is elided in favor of an existing VPC.
func SynthesizedNetworkOutputs(r *config.Resolved) Outputs {
	nw := r.Settings.Networking
	out := Outputs{
		OutputVPCID:   nw.VPCID,
		OutputVPCCIDR: nw.VPCCIDR,
	}
	if len(nw.SubnetIDs) > 0 {
		out[OutputSubnetIDs] = joinIDs(nw.SubnetIDs)
	}
	return out
}

// SynthesizedDatabaseOutputs builds the database outputs for a plan where
// an existing database instance is referenced by secret name.
func SynthesizedDatabaseOutputs(r *config.Resolved) Outputs {
	return Outputs{
		OutputDBSecretName: r.Settings.Database.ConnectionSecretName,
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
