// Package plan provides pure functions for deployment topology planning.
//
// This package is part of the Functional Core: given a resolved
// configuration it decides which infrastructure components exist, in what
// order, and under which names and tags. No I/O happens here - executing
// the plan is the job of internal/shell/provision.
package plan

import "errors"

// =============================================================================
// Component Kinds
// =============================================================================

// Kind identifies one infrastructure component. The set is closed: the
// planner interprets nothing outside these six kinds.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindStorage    Kind = "storage"
	KindDatabase   Kind = "database"
	KindCompute    Kind = "compute"
	KindAccess     Kind = "access"
	KindMonitoring Kind = "monitoring"
)

// kindOrder is the fixed partial order of component layers. Build order is
// a property of the declared dependencies, not of source layout; this list
// only breaks ties deterministically.
var kindOrder = []Kind{
	KindNetwork,
	KindStorage,
	KindDatabase,
	KindCompute,
	KindAccess,
	KindMonitoring,
}

// kindRank maps each kind to its position in the fixed order.
var kindRank = func() map[Kind]int {
	m := make(map[Kind]int, len(kindOrder))
	for i, k := range kindOrder {
		m[k] = i
	}
	return m
}()

// KindFromString converts a component name from configuration into a Kind.
func KindFromString(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kindRank[k]
	return k, ok
}

// Access variants. Exactly one is active per plan.
const (
	VariantAPIGateway = "api_gateway"
	VariantCloudflare = "cloudflare"
)

// =============================================================================
// Descriptors and Outputs
// =============================================================================

// Descriptor is one planned infrastructure component: its kind, the access
// variant where applicable, the upstream kinds whose outputs it consumes,
// and the slice of resolved settings it is built from.
type Descriptor struct {
	Kind      Kind
	Variant   string // access only: api_gateway or cloudflare
	DependsOn []Kind
	Settings  map[string]any
}

// Outputs is the key/value bag a built component exposes for downstream
// consumption.
type Outputs map[string]string

// Well-known output keys.
const (
	OutputVPCID           = "vpc_id"
	OutputSubnetIDs       = "subnet_ids" // comma-separated
	OutputVPCCIDR         = "vpc_cidr"
	OutputSecurityGroupID = "security_group_id"
	OutputFileSystemID    = "filesystem_id"
	OutputAccessPointID   = "access_point_id"
	OutputDBEndpoint      = "db_endpoint"
	OutputDBSecretName    = "db_secret_name"
	OutputClusterName     = "cluster_name"
	OutputServiceName     = "service_name"
	OutputServiceURL      = "service_url"
	OutputEndpointURL     = "endpoint_url"
	OutputTunnelName      = "tunnel_name"
	OutputDashboardName   = "dashboard_name"
)

// Merge returns a copy of o with overlay entries added (overlay wins).
func (o Outputs) Merge(overlay Outputs) Outputs {
	out := make(Outputs, len(o)+len(overlay))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// ErrUnsatisfiableTopology indicates a planned component depends on a
// component that was elided without an externally-supplied substitute.
var ErrUnsatisfiableTopology = errors.New("unsatisfiable topology")
