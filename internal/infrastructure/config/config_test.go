package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"app-access/internal/ports"
)

var configKeys = []string{
	"STORE_BACKEND", "TABLE_NAME", "AWS_REGION", "DATABASE_DRIVER", "DATABASE_DSN",
	"AUTH_MODE", "API_KEY", "COGNITO_USER_POOL_ID", "ALLOW_LIST_FILE",
	"BULK_UPDATE_ATOMIC", "LOG_LEVEL", "PORT",
}

// clearEnv blanks every key Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_DynamoDBDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TABLE_NAME", "app-access")
	t.Setenv("AWS_REGION", "us-east-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendDynamoDB, cfg.StoreBackend)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ports.AuthModeNone, cfg.AuthMode)
	assert.False(t, cfg.BulkUpdateAtomic)
}

func TestLoad_DynamoDBRequiresTable(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SQLBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "SQL")
	t.Setenv("DATABASE_DSN", "file:app-access.db")
	t.Setenv("BULK_UPDATE_ATOMIC", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQL, cfg.StoreBackend)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.True(t, cfg.BulkUpdateAtomic)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend": {"STORE_BACKEND": "redis"},
		"bad auth mode":   {"STORE_BACKEND": "sql", "DATABASE_DSN": "x", "AUTH_MODE": "ldap"},
		"bad atomic flag": {"STORE_BACKEND": "sql", "DATABASE_DSN": "x", "BULK_UPDATE_ATOMIC": "maybe"},
		"cognito no pool": {"STORE_BACKEND": "sql", "DATABASE_DSN": "x", "AUTH_MODE": "cognito", "AWS_REGION": "us-east-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "STORE_BACKEND=sql\nDATABASE_DSN=file:from-dotenv.db\nPORT=9000\n")
	t.Setenv("PORT", "7000")

	cfg, err := Load(envFile, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "file:from-dotenv.db", cfg.DatabaseDSN)
	assert.Equal(t, "7000", cfg.Port)
	for _, k := range []string{"STORE_BACKEND", "DATABASE_DSN"} {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadAllowList_DefaultTable(t *testing.T) {
	list, err := LoadAllowList("")
	require.NoError(t, err)
	assert.Equal(t, []string{"zip-upload"}, list.AppsFor("user02@example.com"))
}

func TestLoadAllowList_FromYAML(t *testing.T) {
	path := writeFile(t, "allow-list.yaml", `
user02@example.com:
  - zip-upload
Ops@Example.com: [contract-review, video-generator]
nobody@example.com: []
`)
	list, err := LoadAllowList(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"zip-upload"}, list.AppsFor("user02@example.com"))
	assert.Equal(t, []string{"contract-review", "video-generator"}, list.AppsFor("ops@example.com"))
	assert.Empty(t, list.AppsFor("nobody@example.com"))
	assert.Empty(t, list.AppsFor("admin01@example.com"))
}

func TestLoadAllowList_Errors(t *testing.T) {
	_, err := LoadAllowList(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadAllowList(writeFile(t, "bad.yaml", "user02@example.com: zip-upload\n"))
	assert.Error(t, err)
}
