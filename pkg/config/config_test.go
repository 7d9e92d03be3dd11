package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, "prompts", cfg.Legacy.OldDir)
	assert.Equal(t, filepath.Join("prometheus_prompt_generator", "prompts"), cfg.Legacy.NewDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Migrations.Dir)
	assert.Empty(t, cfg.Report.Path)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/promptstore/prompts.db
legacy:
  old_dir: archive/prompts
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/promptstore/prompts.db", cfg.Database.Path)
	assert.Equal(t, "archive/prompts", cfg.Legacy.OldDir)
	// Untouched keys keep their defaults.
	assert.Equal(t, filepath.Join("prometheus_prompt_generator", "prompts"), cfg.Legacy.NewDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptstore.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: prompts.db
  pasword: oops
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadRejectsBadLogSettings(t *testing.T) {
	cases := []string{
		"log:\n  level: loud\n",
		"log:\n  format: xml\n",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "promptstore.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		_, err := Load(path)
		require.Error(t, err, "config %q should be rejected", body)
	}
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv(EnvDatabasePath, "/tmp/env-override.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-override.db", cfg.Database.Path)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: from-file.db\n"), 0o644))
	t.Setenv(EnvDatabasePath, "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
}

func TestReportPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		filepath.Join("data", "schema_validation_report.md"),
		cfg.ReportPath(filepath.Join("data", "prompts.db")))

	cfg.Report.Path = filepath.Join("out", "report.md")
	assert.Equal(t, filepath.Join("out", "report.md"), cfg.ReportPath("anything.db"))
}
