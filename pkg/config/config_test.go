package config_test

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/bluegreen.yaml
var testConfigYAML string

func TestLoadConfig(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader(testConfigYAML))
		require.NoError(t, err)
		validateTestConfig(t, config)
	})

	t.Run("error", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader("invalid: yaml: ["))
		require.Error(t, err)
		require.Nil(t, config)
		require.Contains(t, err.Error(), "failed to unmarshal project config")

		config, err = LoadConfig(strings.NewReader("drain_interval: soon"))
		require.Error(t, err)
		require.Nil(t, config)

		config, err = LoadConfig(strings.NewReader("workers: -1"))
		require.Error(t, err)
		require.Nil(t, config)
		require.Contains(t, err.Error(), "workers must not be negative")
	})

	t.Run("defaults", func(t *testing.T) {
		for _, doc := range []string{"", "other_key: value", "workers: 0"} {
			config, err := LoadConfig(strings.NewReader(doc))
			require.NoError(t, err, doc)
			require.Equal(t, Defaults(), config, doc)
		}
	})

	t.Run("partial", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader("workers: 4\n"))
		require.NoError(t, err)
		require.Equal(t, 4, config.Workers)
		require.Equal(t, consts.DefaultProjectDir, config.ProjectDir)
		require.Equal(t, consts.DefaultExecutable, config.Executable)
		require.Equal(t, consts.DefaultDrainInterval, config.DrainInterval)
		require.Equal(t, consts.DefaultQueryTag, config.QueryTag)
	})
}

func TestDefaults(t *testing.T) {
	require.Equal(t, &Config{
		Workers:       20,
		ProjectDir:    ".",
		Executable:    "dbt",
		DrainInterval: time.Minute,
		QueryTag:      "bluegreen",
	}, Defaults())
}

func TestLoadConfigFile(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bluegreen.yaml")
		require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), consts.ModeFile))

		config, err := LoadConfigFile(path)
		require.NoError(t, err)
		validateTestConfig(t, config)
	})

	t.Run("error", func(t *testing.T) {
		config, err := LoadConfigFile("nonexistent.yaml")
		require.Error(t, err)
		require.Nil(t, config)
		require.Contains(t, err.Error(), "failed to open file")

		// Directory instead of file
		config, err = LoadConfigFile(t.TempDir())
		require.Error(t, err)
		require.Nil(t, config)
		require.True(t, strings.Contains(err.Error(), "failed to open file") ||
			strings.Contains(err.Error(), "failed to unmarshal project config"))
	})
}

func TestLoad(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), config)

	path := filepath.Join(t.TempDir(), "bluegreen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), consts.ModeFile))

	config, err = Load(path)
	require.NoError(t, err)
	validateTestConfig(t, config)
}

func TestPath(t *testing.T) {
	t.Setenv(consts.ConfigEnv, "")
	require.Equal(t, "bluegreen.yaml", Path())

	t.Setenv(consts.ConfigEnv, "/etc/bluegreen/prod.yaml")
	require.Equal(t, "/etc/bluegreen/prod.yaml", Path())
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := "BLUEGREEN_TEST_ACCOUNT=from-file\nBLUEGREEN_TEST_USER=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), consts.ModeFile))

	t.Setenv("BLUEGREEN_TEST_USER", "from-env")
	t.Setenv("BLUEGREEN_TEST_ACCOUNT", "")
	require.NoError(t, os.Unsetenv("BLUEGREEN_TEST_ACCOUNT"))

	require.NoError(t, LoadEnv(t.TempDir(), dir))
	t.Cleanup(func() { _ = os.Unsetenv("BLUEGREEN_TEST_ACCOUNT") })

	require.Equal(t, "from-file", os.Getenv("BLUEGREEN_TEST_ACCOUNT"))
	require.Equal(t, "from-env", os.Getenv("BLUEGREEN_TEST_USER"))
}

func TestConfig_ApplyTo(t *testing.T) {
	config, err := LoadConfig(strings.NewReader(testConfigYAML))
	require.NoError(t, err)

	plan := deploy.Plan{ProductionDatabase: "PROD", Workers: 3}
	config.ApplyTo(&plan)
	require.Equal(t, "PROD", plan.ProductionDatabase)
	require.Equal(t, 8, plan.Workers)
	require.Equal(t, "analytics", plan.ProjectDir)
}

// validateTestConfig validates that a config contains the expected test data
func validateTestConfig(t *testing.T, config *Config) {
	t.Helper()
	require.NotNil(t, config)
	require.Equal(t, 8, config.Workers)
	require.Equal(t, "analytics", config.ProjectDir)
	require.Equal(t, "/usr/local/bin/dbt", config.Executable)
	require.Equal(t, 30*time.Second, config.DrainInterval)
	require.Equal(t, "nightly", config.QueryTag)
}
