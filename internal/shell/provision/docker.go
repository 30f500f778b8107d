package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/compose-spec/compose-go/v2/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
	"github.com/flowdeploy/flowdeploy/internal/core/plan"
)

// =============================================================================
// Docker Provisioner
// =============================================================================

// Engine-specific output keys, alongside the well-known plan outputs.
const (
	OutputNetworkName = "network_name"
	OutputVolumeName  = "volume_name"
	OutputContainerID = "container_id"
)

// DockerProvisioner targets a local container engine. Components map onto
// engine primitives: the network becomes a bridge network, storage a named
// volume, the database a postgres container, compute the application
// container, and cloudflare access a cloudflared sidecar. Service
// definitions are rendered as a compose document and validated by the
// compose loader before any engine call.
type DockerProvisioner struct {
	cli     *client.Client
	secrets SecretSource
	logger  *slog.Logger
}

// NewDockerProvisioner creates a provisioner connected to the local engine.
// An empty host uses the environment defaults (DOCKER_HOST et al).
func NewDockerProvisioner(host string, logger *slog.Logger) (*DockerProvisioner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &DockerProvisioner{
		cli:     cli,
		secrets: EnvSecretSource,
		logger:  logger.With("provisioner", "docker"),
	}, nil
}

// WithSecretSource replaces the secret source. Tests use this to avoid
// depending on the process environment.
func (p *DockerProvisioner) WithSecretSource(src SecretSource) *DockerProvisioner {
	p.secrets = src
	return p
}

// Close releases the engine connection.
func (p *DockerProvisioner) Close() error {
	return p.cli.Close()
}

// EnvSecretSource resolves a secret reference from the process environment.
// The reference is mapped to an environment variable name by uppercasing and
// replacing every non-alphanumeric rune with an underscore, so the secret
// "myproj/db-password" is read from MYPROJ_DB_PASSWORD.
func EnvSecretSource(name string) (string, bool) {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return os.LookupEnv(b.String())
}

// BuildComponent builds one component on the local engine.
func (p *DockerProvisioner) BuildComponent(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	switch req.Descriptor.Kind {
	case plan.KindNetwork:
		return p.buildNetwork(ctx, req)
	case plan.KindStorage:
		return p.buildVolume(ctx, req)
	case plan.KindDatabase:
		return p.buildService(ctx, req, composeDatabaseService)
	case plan.KindCompute:
		return p.buildService(ctx, req, composeAppService)
	case plan.KindAccess:
		return p.buildAccess(ctx, req)
	case plan.KindMonitoring:
		// No local monitoring stack; the engine's own logs serve.
		return plan.Outputs{plan.OutputDashboardName: req.Name}, nil
	default:
		return nil, fmt.Errorf("unknown component kind %q", req.Descriptor.Kind)
	}
}

func (p *DockerProvisioner) buildNetwork(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	resp, err := p.cli.NetworkCreate(ctx, req.Name, network.CreateOptions{
		Driver: "bridge",
		Labels: req.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("create network %s: %w", req.Name, err)
	}
	p.logger.Info("network created", "name", req.Name, "id", resp.ID)
	return plan.Outputs{
		OutputNetworkName: req.Name,
		plan.OutputVPCID:  resp.ID,
	}, nil
}

func (p *DockerProvisioner) buildVolume(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	vol, err := p.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   req.Name,
		Labels: req.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("create volume %s: %w", req.Name, err)
	}
	return plan.Outputs{
		OutputVolumeName:         vol.Name,
		plan.OutputFileSystemID:  vol.Name,
		plan.OutputAccessPointID: vol.Mountpoint,
	}, nil
}

// buildService renders the compose project, validates it, and runs the named
// service as a container on the component network.
func (p *DockerProvisioner) buildService(ctx context.Context, req BuildRequest, serviceName string) (plan.Outputs, error) {
	networkName := req.Upstream[plan.KindNetwork][OutputNetworkName]
	if networkName == "" {
		networkName = req.Resolved.Project
	}

	project, err := p.renderProject(ctx, req, networkName)
	if err != nil {
		return nil, err
	}
	svc, ok := project.Services[serviceName]
	if !ok {
		return nil, fmt.Errorf("service %s not present in rendered project", serviceName)
	}

	containerID, err := p.runService(ctx, req, serviceName, svc, networkName)
	if err != nil {
		return nil, err
	}

	switch serviceName {
	case composeDatabaseService:
		return plan.Outputs{
			OutputContainerID:       containerID,
			plan.OutputDBEndpoint:   serviceName + ":5432",
			plan.OutputDBSecretName: databaseSecretName(req.Resolved),
		}, nil
	default:
		port := config.DefaultAppPort
		if d := req.Resolved.Settings.Docker; d != nil && d.Port != 0 {
			port = d.Port
		}
		return plan.Outputs{
			OutputContainerID:      containerID,
			plan.OutputServiceName: serviceName,
			plan.OutputServiceURL:  fmt.Sprintf("http://localhost:%d", port),
		}, nil
	}
}

func (p *DockerProvisioner) buildAccess(ctx context.Context, req BuildRequest) (plan.Outputs, error) {
	if req.Descriptor.Variant != plan.VariantCloudflare {
		// No gateway process locally; the published app port is the access
		// point.
		return plan.Outputs{
			plan.OutputEndpointURL: req.Upstream[plan.KindCompute][plan.OutputServiceURL],
		}, nil
	}

	out, err := p.buildService(ctx, req, composeCloudflareService)
	if err != nil {
		return nil, err
	}
	cf := req.Resolved.Settings.Access.Cloudflare
	out[plan.OutputTunnelName] = cf.TunnelName
	out[plan.OutputEndpointURL] = "https://" + cf.TunnelDomain
	delete(out, plan.OutputServiceName)
	delete(out, plan.OutputServiceURL)
	return out, nil
}

func (p *DockerProvisioner) renderProject(ctx context.Context, req BuildRequest, networkName string) (*types.Project, error) {
	doc, err := RenderCompose(req.Resolved, networkName, p.secrets)
	if err != nil {
		return nil, err
	}
	return ValidateCompose(ctx, req.Resolved.Project, doc)
}

// runService pulls the service image and creates and starts its container.
// The container name is the component name so repeated runs fail loudly
// instead of stacking duplicates.
func (p *DockerProvisioner) runService(ctx context.Context, req BuildRequest, serviceName string, svc types.ServiceConfig, networkName string) (string, error) {
	if err := p.pullImage(ctx, svc.Image); err != nil {
		return "", err
	}

	cfg := &container.Config{
		Image:  svc.Image,
		Env:    envList(svc.Environment),
		Labels: req.Tags,
	}
	if len(svc.Command) > 0 {
		cfg.Cmd = []string(svc.Command)
	}

	hostConfig := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if err := applyPorts(cfg, hostConfig, svc.Ports); err != nil {
		return "", err
	}
	applyMounts(hostConfig, req, svc)

	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {Aliases: []string{serviceName}},
		},
	}

	created, err := p.cli.ContainerCreate(ctx, cfg, hostConfig, networkConfig, nil, req.Name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", req.Name, err)
	}
	if err := p.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s: %w", req.Name, err)
	}

	p.logger.Info("container started",
		"name", req.Name,
		"service", serviceName,
		"image", svc.Image,
	)
	return created.ID, nil
}

func (p *DockerProvisioner) pullImage(ctx context.Context, ref string) error {
	rc, err := p.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer rc.Close()
	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

func envList(env types.MappingWithEquals) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		if v == nil {
			continue
		}
		out = append(out, k+"="+*v)
	}
	return out
}

func applyPorts(cfg *container.Config, hostConfig *container.HostConfig, ports []types.ServicePortConfig) error {
	if len(ports) == 0 {
		return nil
	}
	bindings := nat.PortMap{}
	exposed := nat.PortSet{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		containerPort := nat.Port(fmt.Sprintf("%d/%s", p.Target, proto))
		exposed[containerPort] = struct{}{}
		bindings[containerPort] = []nat.PortBinding{
			{HostIP: "0.0.0.0", HostPort: p.Published},
		}
	}
	cfg.ExposedPorts = exposed
	hostConfig.PortBindings = bindings
	return nil
}

// applyMounts maps the service's named volumes onto engine volumes. The
// application data volume is the storage component's volume when one was
// built; the database volume is derived from the container name.
func applyMounts(hostConfig *container.HostConfig, req BuildRequest, svc types.ServiceConfig) {
	for _, v := range svc.Volumes {
		if v.Type != types.VolumeTypeVolume {
			continue
		}
		source := v.Source
		switch source {
		case composeDataVolume:
			if name := req.Upstream[plan.KindStorage][OutputVolumeName]; name != "" {
				source = name
			}
		case composeDBVolume:
			source = req.Name + "-data"
		}
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: source,
			Target: v.Target,
		})
	}
}

func databaseSecretName(r *config.Resolved) string {
	if name := r.Settings.Database.ConnectionSecretName; name != "" {
		return name
	}
	return r.Project + "-db-password"
}
