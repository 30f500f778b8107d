package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapSecrets(values map[string]string) SecretSource {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

// =============================================================================
// RenderCompose Tests
// =============================================================================

func TestRenderCompose_SQLiteAppOnly(t *testing.T) {
	r := resolveFixture(t, map[string]any{
		"database": map[string]any{"type": "sqlite"},
	})

	doc, err := RenderCompose(r, "flow-net", mapSecrets(nil))
	require.NoError(t, err)

	services := doc["services"].(map[string]any)
	assert.Contains(t, services, composeAppService)
	assert.NotContains(t, services, composeDatabaseService)
	assert.NotContains(t, services, composeCloudflareService)

	app := services[composeAppService].(map[string]any)
	env := app["environment"].(map[string]any)
	assert.NotContains(t, env, "DB_TYPE")
}

func TestRenderCompose_ManagedPostgres(t *testing.T) {
	r := resolveFixture(t, nil)
	secrets := mapSecrets(map[string]string{"flow-db-password": "s3cret"})

	doc, err := RenderCompose(r, "flow-net", secrets)
	require.NoError(t, err)

	services := doc["services"].(map[string]any)
	require.Contains(t, services, composeDatabaseService)

	db := services[composeDatabaseService].(map[string]any)
	dbEnv := db["environment"].(map[string]any)
	assert.Equal(t, "flow", dbEnv["POSTGRES_DB"])
	assert.Equal(t, "s3cret", dbEnv["POSTGRES_PASSWORD"])

	app := services[composeAppService].(map[string]any)
	appEnv := app["environment"].(map[string]any)
	assert.Equal(t, "postgresdb", appEnv["DB_TYPE"])
	assert.Equal(t, composeDatabaseService, appEnv["DB_POSTGRESDB_HOST"])
	assert.Equal(t, []any{composeDatabaseService}, app["depends_on"])

	volumes := doc["volumes"].(map[string]any)
	assert.Contains(t, volumes, composeDBVolume)
}

func TestRenderCompose_ExistingPostgresUsesConnectionString(t *testing.T) {
	r := resolveFixture(t, map[string]any{
		"database": map[string]any{
			"use_existing":           true,
			"connection_secret_name": "prod-db-dsn",
		},
	})
	secrets := mapSecrets(map[string]string{"prod-db-dsn": "postgres://u:p@host/db"})

	doc, err := RenderCompose(r, "flow-net", secrets)
	require.NoError(t, err)

	services := doc["services"].(map[string]any)
	assert.NotContains(t, services, composeDatabaseService)

	appEnv := services[composeAppService].(map[string]any)["environment"].(map[string]any)
	assert.Equal(t, "postgres://u:p@host/db", appEnv["DB_POSTGRESDB_CONNECTION_STRING"])
}

func TestRenderCompose_CloudflareSidecar(t *testing.T) {
	r := resolveFixture(t, map[string]any{
		"database": map[string]any{"type": "sqlite"},
		"access": map[string]any{
			"type": "cloudflare",
			"cloudflare": map[string]any{
				"tunnel_token_secret_name": "flow-tunnel-token",
				"tunnel_domain":            "flow.example.com",
			},
		},
	})
	secrets := mapSecrets(map[string]string{"flow-tunnel-token": "tok-123"})

	doc, err := RenderCompose(r, "flow-net", secrets)
	require.NoError(t, err)

	services := doc["services"].(map[string]any)
	require.Contains(t, services, composeCloudflareService)

	cf := services[composeCloudflareService].(map[string]any)
	assert.Contains(t, cf["command"], "tok-123")
	assert.Equal(t, []any{composeAppService}, cf["depends_on"])
}

func TestRenderCompose_MissingSecret(t *testing.T) {
	r := resolveFixture(t, nil)

	_, err := RenderCompose(r, "flow-net", mapSecrets(nil))
	assert.ErrorIs(t, err, ErrSecretUnavailable)
	assert.Contains(t, err.Error(), "flow-db-password")
}

func TestRenderCompose_MissingTunnelToken(t *testing.T) {
	r := resolveFixture(t, map[string]any{
		"database": map[string]any{"type": "sqlite"},
		"access": map[string]any{
			"type": "cloudflare",
			"cloudflare": map[string]any{
				"tunnel_token_secret_name": "flow-tunnel-token",
			},
		},
	})

	_, err := RenderCompose(r, "flow-net", mapSecrets(nil))
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}

func TestRenderCompose_CustomImageAndPort(t *testing.T) {
	r := resolveFixture(t, map[string]any{
		"database": map[string]any{"type": "sqlite"},
		"docker": map[string]any{
			"image": "n8nio/n8n:1.95.0",
			"port":  8080,
		},
	})

	doc, err := RenderCompose(r, "flow-net", mapSecrets(nil))
	require.NoError(t, err)

	app := doc["services"].(map[string]any)[composeAppService].(map[string]any)
	assert.Equal(t, "n8nio/n8n:1.95.0", app["image"])
	assert.Equal(t, []any{"8080:5678"}, app["ports"])
}

// =============================================================================
// ValidateCompose Tests
// =============================================================================

func TestValidateCompose_RenderedDocumentLoads(t *testing.T) {
	r := resolveFixture(t, nil)
	secrets := mapSecrets(map[string]string{"flow-db-password": "s3cret"})

	doc, err := RenderCompose(r, "flow-net", secrets)
	require.NoError(t, err)

	project, err := ValidateCompose(context.Background(), "flow", doc)
	require.NoError(t, err)

	require.Contains(t, project.Services, composeAppService)
	require.Contains(t, project.Services, composeDatabaseService)

	app := project.Services[composeAppService]
	assert.NotEmpty(t, app.Image)
	require.Len(t, app.Ports, 1)
	assert.Equal(t, uint32(5678), app.Ports[0].Target)
}

func TestValidateCompose_RejectsBrokenService(t *testing.T) {
	doc := map[string]any{
		"services": map[string]any{
			"app": map[string]any{
				// Neither image nor build.
				"restart": "unless-stopped",
			},
		},
	}

	_, err := ValidateCompose(context.Background(), "flow", doc)
	assert.Error(t, err)
}
