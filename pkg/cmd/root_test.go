package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func restoreLogger(t *testing.T) {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestConfigureLogging(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, configureLogging(&buf, "debug", "json"))
	slog.Debug("Cloning schemas", "count", 3)
	require.Contains(t, buf.String(), `"msg":"Cloning schemas"`)
	require.Contains(t, buf.String(), `"count":3`)

	buf.Reset()
	require.NoError(t, configureLogging(&buf, "warn", "TEXT"))
	slog.Info("hidden")
	slog.Warn("shown", "state", deploy.StateDrain)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown state=DRAIN")
}

func TestConfigureLogging_Errors(t *testing.T) {
	restoreLogger(t)

	tests := []struct {
		name   string
		level  string
		format string
	}{
		{name: "unknown level", level: "loud", format: "text"},
		{name: "unknown format", level: "info", format: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := configureLogging(&bytes.Buffer{}, tt.level, tt.format)
			require.Error(t, err)
			require.Equal(t, deploy.ClassConfig, deploy.Classify(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	restoreLogger(t)
	require.NoError(t, configureLogging(&bytes.Buffer{}, "info", "text"))

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "success", err: nil, expected: 0},
		{name: "usage", err: errors.New("flag provided but not defined: -x"), expected: 1},
		{name: "config", err: &deploy.ConfigurationError{Msg: "log level"}, expected: 2},
		{
			name:     "reported precondition",
			err:      &deploymentFailed{err: &deploy.PreconditionViolated{Reason: deploy.DrainTimeout, Database: "PROD_STAGING"}},
			expected: 3,
		},
		{
			name:     "reported build",
			err:      &deploymentFailed{err: &deploy.BuildFailed{ExitCode: 2}},
			expected: 5,
		},
		{
			name:     "reported swap",
			err:      &deploymentFailed{err: &deploy.SwapFailed{Err: errors.New("timeout")}},
			expected: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}

func TestExitCode_LogsUnreportedErrors(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, configureLogging(&buf, "info", "text"))

	exitCode(errors.New("boom"))
	require.Contains(t, buf.String(), "Error running command")

	buf.Reset()
	exitCode(&deploymentFailed{err: &deploy.BuildFailed{ExitCode: 1}})
	require.Empty(t, buf.String())
}

func TestReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\nquery_tag: nightly\n"), consts.ModeFile))

	cfg := config.Defaults()
	require.NoError(t, reloadConfig(cfg, path, true))
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, "nightly", cfg.QueryTag)

	require.NoError(t, reloadConfig(cfg, filepath.Join(dir, "missing.yaml"), false))
	require.Equal(t, config.Defaults(), cfg)

	err := reloadConfig(cfg, filepath.Join(dir, "missing.yaml"), true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open file")

	require.NoError(t, reloadConfig(nil, path, true))
}

func TestNewApp(t *testing.T) {
	restoreLogger(t)
	t.Chdir(t.TempDir())

	project := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(project, "deploy.yaml"),
		[]byte("workers: 6\ndrain_interval: 5s\n"),
		consts.ModeFile,
	))

	cfg := config.Defaults()

	var seen config.Config
	probe := &cli.Command{
		Name: "probe",
		Action: func(context.Context, *cli.Command) error {
			seen = *cfg
			return nil
		},
	}

	app := newApp(Params{
		Commands: []*cli.Command{probe},
		Config:   cfg,
		Version:  &Version{Version: "test-1.0.0"},
	})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(context.Background(), []string{"bluegreen", "--dir", project, "--config", "deploy.yaml", "probe"})
	require.NoError(t, err)
	require.Equal(t, 6, seen.Workers)
	require.Equal(t, consts.DefaultExecutable, seen.Executable)

	wd, err := os.Getwd()
	require.NoError(t, err)

	expected, err := filepath.EvalSymlinks(project)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}

func TestNewApp_MissingConfig(t *testing.T) {
	restoreLogger(t)
	t.Chdir(t.TempDir())

	app := newApp(Params{
		Commands: []*cli.Command{{Name: "probe", Action: func(context.Context, *cli.Command) error { return nil }}},
		Config:   config.Defaults(),
		Version:  &Version{Version: "test-1.0.0"},
	})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(context.Background(), []string{"bluegreen", "--config", "nope.yaml", "probe"})
	require.Error(t, err)
	require.Equal(t, 2, deploy.ExitCode(err))
}
