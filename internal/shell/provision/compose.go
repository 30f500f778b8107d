package provision

import (
	"context"
	"fmt"
	"strconv"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/flowdeploy/flowdeploy/internal/core/config"
)

// =============================================================================
// Compose Rendering
// =============================================================================

// Service names inside the rendered compose project.
const (
	composeAppService        = "app"
	composeDatabaseService   = "database"
	composeCloudflareService = "cloudflared"

	composeDataVolume = "app-data"
	composeDBVolume   = "db-data"
)

// SecretSource resolves a secret reference to its value. The docker target
// resolves against the process environment; tests inject a map.
type SecretSource func(name string) (string, bool)

// ErrSecretUnavailable indicates a configured secret reference could not be
// resolved by the active secret source.
var ErrSecretUnavailable = fmt.Errorf("secret unavailable")

// RenderCompose converts a resolved configuration into a compose document
// for the local container engine. The document always carries the
// application service; a database service is added for a managed postgres
// database, and a cloudflared sidecar when access goes through a Cloudflare
// tunnel.
//
// Secret references (database password, tunnel token) are resolved through
// the given SecretSource; the rendered document contains the values, so it
// must never be persisted.
func RenderCompose(r *config.Resolved, networkName string, secrets SecretSource) (map[string]any, error) {
	s := r.Settings

	services := map[string]any{}
	volumes := map[string]any{
		composeDataVolume: map[string]any{},
	}

	app, err := renderAppService(r, secrets)
	if err != nil {
		return nil, err
	}
	services[composeAppService] = app

	if s.Database.Type == config.DatabasePostgres && !s.Database.UseExisting {
		db, err := renderDatabaseService(r, secrets)
		if err != nil {
			return nil, err
		}
		services[composeDatabaseService] = db
		volumes[composeDBVolume] = map[string]any{}
	}

	if s.Access.Type == config.AccessCloudflare {
		cf, err := renderCloudflareService(r, secrets)
		if err != nil {
			return nil, err
		}
		services[composeCloudflareService] = cf
	}

	return map[string]any{
		"services": services,
		"volumes":  volumes,
		"networks": map[string]any{
			"default": map[string]any{
				"name": networkName,
			},
		},
	}, nil
}

func renderAppService(r *config.Resolved, secrets SecretSource) (map[string]any, error) {
	s := r.Settings

	image := config.DefaultAppImage
	port := config.DefaultAppPort
	if s.Docker != nil {
		if s.Docker.Image != "" {
			image = s.Docker.Image
		}
		if s.Docker.Port != 0 {
			port = s.Docker.Port
		}
	}

	env := map[string]any{
		"N8N_PORT":         strconv.Itoa(config.DefaultAppPort),
		"N8N_PROTOCOL":     "http",
		"GENERIC_TIMEZONE": "UTC",
	}

	svc := map[string]any{
		"image":   image,
		"restart": "unless-stopped",
		"ports": []any{
			fmt.Sprintf("%d:%d", port, config.DefaultAppPort),
		},
		"volumes": []any{
			composeDataVolume + ":/home/node/.n8n",
		},
		"environment": env,
	}

	if s.Database.Type == config.DatabasePostgres {
		env["DB_TYPE"] = "postgresdb"
		env["DB_POSTGRESDB_DATABASE"] = r.Project

		if s.Database.UseExisting {
			dsn, ok := secrets(s.Database.ConnectionSecretName)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrSecretUnavailable, s.Database.ConnectionSecretName)
			}
			env["DB_POSTGRESDB_CONNECTION_STRING"] = dsn
		} else {
			password, err := databasePassword(r, secrets)
			if err != nil {
				return nil, err
			}
			env["DB_POSTGRESDB_HOST"] = composeDatabaseService
			env["DB_POSTGRESDB_PORT"] = "5432"
			env["DB_POSTGRESDB_USER"] = r.Project
			env["DB_POSTGRESDB_PASSWORD"] = password
			svc["depends_on"] = []any{composeDatabaseService}
		}
	}

	return svc, nil
}

func renderDatabaseService(r *config.Resolved, secrets SecretSource) (map[string]any, error) {
	password, err := databasePassword(r, secrets)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"image":   "postgres:16-alpine",
		"restart": "unless-stopped",
		"environment": map[string]any{
			"POSTGRES_DB":       r.Project,
			"POSTGRES_USER":     r.Project,
			"POSTGRES_PASSWORD": password,
		},
		"volumes": []any{
			composeDBVolume + ":/var/lib/postgresql/data",
		},
	}, nil
}

func renderCloudflareService(r *config.Resolved, secrets SecretSource) (map[string]any, error) {
	cf := r.Settings.Access.Cloudflare
	token, ok := secrets(cf.TunnelTokenSecretName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretUnavailable, cf.TunnelTokenSecretName)
	}
	return map[string]any{
		"image":   "cloudflare/cloudflared:latest",
		"restart": "unless-stopped",
		"command": []any{"tunnel", "--no-autoupdate", "run", "--token", token},
		"depends_on": []any{
			composeAppService,
		},
	}, nil
}

// databasePassword resolves the managed database password. The secret name
// defaults to "<project>-db-password" when no connection secret is
// configured.
func databasePassword(r *config.Resolved, secrets SecretSource) (string, error) {
	name := r.Settings.Database.ConnectionSecretName
	if name == "" {
		name = r.Project + "-db-password"
	}
	password, ok := secrets(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretUnavailable, name)
	}
	return password, nil
}

// ValidateCompose loads the rendered document through the compose loader,
// so malformed service definitions fail before any engine call.
func ValidateCompose(ctx context.Context, projectName string, doc map[string]any) (*types.Project, error) {
	content, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal compose document: %w", err)
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  doc,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("compose validation: %w", err)
	}
	return project, nil
}
