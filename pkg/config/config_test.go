package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  database: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.Host)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Server.HeartbeatInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("LEADFLOW_TEST_KEY", "sk-from-env")

	path := writeConfig(t, `
llm:
  api_key: "${LEADFLOW_TEST_KEY}"
  model: "${LEADFLOW_TEST_MODEL:-gpt-4o-mini}"
database:
  driver: sqlite
  database: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_RejectsInvalidDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
  database: leads
  host: db.internal
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid driver")
}

func TestLoad_AgentOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  database: ":memory:"
agents:
  product_definer:
    system_prompt: "Custom prompt"
    history_window: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Agents, "product_definer")
	assert.Equal(t, "Custom prompt", cfg.Agents["product_definer"].SystemPrompt)
	assert.Equal(t, 5, cfg.Agents["product_definer"].HistoryWindow)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "sqlite uses the file path",
			cfg:  DatabaseConfig{Driver: "sqlite", Database: "/tmp/leadflow.db"},
			want: "/tmp/leadflow.db",
		},
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver: "postgres", Host: "db", Port: 5432,
				Database: "leadflow", Username: "app", Password: "s3cret", SSLMode: "disable",
			},
			want: "host=db port=5432 dbname=leadflow sslmode=disable user=app password=s3cret",
		},
		{
			name: "mysql",
			cfg: DatabaseConfig{
				Driver: "mysql", Host: "db", Port: 3306,
				Database: "leadflow", Username: "app", Password: "s3cret",
			},
			want: "app:s3cret@tcp(db:3306)/leadflow?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestDatabaseConfig_DriverName(t *testing.T) {
	cfg := DatabaseConfig{Driver: "sqlite"}
	assert.Equal(t, "sqlite3", cfg.DriverName())

	cfg.Driver = "postgres"
	assert.Equal(t, "postgres", cfg.DriverName())
}

func TestServerConfig_ValidateAuth(t *testing.T) {
	cfg := ServerConfig{Port: 8080, Auth: AuthConfig{Enabled: true}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwks_url")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestServerConfig_HeartbeatDisabled(t *testing.T) {
	cfg := ServerConfig{HeartbeatInterval: -1}
	cfg.SetDefaults()

	// An explicit negative survives defaulting and disables heartbeats.
	assert.Equal(t, -1, cfg.HeartbeatInterval)
	assert.Equal(t, time.Duration(0), cfg.Heartbeat())

	var unset ServerConfig
	unset.SetDefaults()
	assert.Equal(t, 15*time.Second, unset.Heartbeat())
}
