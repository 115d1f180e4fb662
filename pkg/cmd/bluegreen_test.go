package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/cmd/testutil"
	"github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	"github.com/pseudomuto/bluegreen/pkg/warehouse/warehousetest"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	wh      *warehousetest.Warehouse
	targets []deploy.Target
}

func (f *fakeConnector) Connect(_ context.Context, target deploy.Target) (warehouse.Session, error) {
	f.targets = append(f.targets, target)
	return f.wh, nil
}

type fakeRunner struct {
	err         error
	invocations []deploy.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv deploy.Invocation) error {
	f.invocations = append(f.invocations, inv)
	return f.err
}

type blueGreenFixture struct {
	wh        *warehousetest.Warehouse
	connector *fakeConnector
	runner    *fakeRunner
	params    blueGreenParams
	sleeps    int
}

func newBlueGreenFixture(t *testing.T) *blueGreenFixture {
	t.Helper()
	t.Setenv(consts.MainDatabaseEnv, "")

	wh := warehousetest.New()
	wh.AddDatabase("PROD", "RAW", "MARTS")
	wh.GrantOnDatabase("PROD", "USAGE", "REPORTER")
	wh.GrantOnSchema("PROD", "MARTS", "USAGE", "REPORTER")

	f := &blueGreenFixture{
		wh:        wh,
		connector: &fakeConnector{wh: wh},
		runner:    &fakeRunner{},
	}

	f.params = blueGreenParams{
		Config:    config.Defaults(),
		Connector: f.connector,
		Runner:    f.runner,
		Sleep: func(context.Context, time.Duration) error {
			f.sleeps++
			return nil
		},
	}

	return f
}

func (f *blueGreenFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return testutil.RunCommandWithOutput(context.Background(), t, blueGreen(f.params), args)
}

func TestBlueGreenCommand(t *testing.T) {
	command := blueGreen(newBlueGreenFixture(t).params)
	require.Equal(t, "blue-green", command.Name)
	require.NotEmpty(t, command.Usage)
	require.NotNil(t, command.Action)

	names := make(map[string]bool)
	for _, flag := range command.Flags {
		for _, name := range flag.Names() {
			names[name] = true
		}
	}

	for _, name := range []string{
		"production-database",
		"staging-database",
		"staging-suffix",
		"drop-staging-db",
		"drop-staging-db-after",
		"drop-staging-db-on-failure",
		"keep-staging-db-on-success",
		"dbt-selector",
		"full-refresh",
		"defer",
		"target",
		"t",
		"workers",
		"project-dir",
		"dbt-executable",
		"dry-run",
	} {
		require.True(t, names[name], "missing flag %s", name)
	}
}

func TestBlueGreenCommand_Deploys(t *testing.T) {
	f := newBlueGreenFixture(t)

	out, err := f.run(t,
		"--production-database", "prod",
		"--dbt-selector=-s",
		"--dbt-selector=tag:hourly,tag:daily",
		"-t", "prod",
	)
	require.NoError(t, err)
	require.Contains(t, out, "complete: PROD swapped with PROD_STAGING")
	require.Contains(t, out, "Cloned 2 schema(s)")
	require.Contains(t, out, "GRANTS_CLONED")

	require.True(t, f.wh.Exists("PROD"))
	require.False(t, f.wh.Exists("PROD_STAGING"))
	require.Equal(t, []string{"INFORMATION_SCHEMA", "MARTS", "PUBLIC", "RAW"}, f.wh.Database("PROD").SchemaNames())

	require.Len(t, f.connector.targets, 1)
	require.Equal(t, "PROD", f.connector.targets[0].Blue.String())
	require.Equal(t, "PROD_STAGING", f.connector.targets[0].Green.String())

	require.Len(t, f.runner.invocations, 1)
	inv := f.runner.invocations[0]
	require.Equal(t, []string{"build", "--fail-fast", "-s", "tag:hourly,tag:daily", "-t", "prod"}, inv.Args)
	require.Equal(t, ".", inv.Dir)
	require.Equal(t, map[string]string{"PROD_DATABASE": "PROD_STAGING"}, inv.Env)
}

func TestBlueGreenCommand_MainDatabaseEnv(t *testing.T) {
	f := newBlueGreenFixture(t)
	t.Setenv(consts.MainDatabaseEnv, "PROD")

	_, err := f.run(t, "--staging-database", "PROD_NEXT", "--keep-staging-db-on-success")
	require.NoError(t, err)

	// post-swap the previous production database lives under the staging name
	require.True(t, f.wh.Exists("PROD"))
	require.True(t, f.wh.Exists("PROD_NEXT"))
	require.Empty(t, f.wh.StatementsOfKind("DROP DATABASE"))
}

func TestBlueGreenCommand_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "no production database",
			args:   []string{},
			errMsg: "production database is required",
		},
		{
			name:   "both naming options",
			args:   []string{"--production-database", "PROD", "--staging-database", "GREEN", "--staging-suffix", "NEXT"},
			errMsg: "mutually exclusive",
		},
		{
			name:   "same database",
			args:   []string{"--production-database", "PROD", "--staging-database", "prod"},
			errMsg: "are both PROD",
		},
		{
			name:   "no workers",
			args:   []string{"--production-database", "PROD", "--workers", "0"},
			errMsg: "workers must be at least 1",
		},
		{
			name:   "negative drain",
			args:   []string{"--production-database", "PROD", "--drop-staging-db-after=-1"},
			errMsg: "drain minutes must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBlueGreenFixture(t)

			out, err := f.run(t, tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
			require.Equal(t, deploy.ClassConfig, deploy.Classify(err))
			require.Equal(t, 2, exitCode(err))
			require.Contains(t, out, "failed in PRECHECK (config)")

			require.Empty(t, f.connector.targets)
			require.Empty(t, f.wh.Statements())
		})
	}
}

func TestBlueGreenCommand_GreenAlreadyExists(t *testing.T) {
	f := newBlueGreenFixture(t)
	f.wh.AddDatabase("PROD_STAGING")

	out, err := f.run(t, "--production-database", "PROD")
	require.Error(t, err)
	require.Equal(t, 3, exitCode(err))
	require.Contains(t, out, "failed in PRECHECK (precondition)")

	var violated *deploy.PreconditionViolated
	require.True(t, errors.As(err, &violated))
	require.Equal(t, deploy.GreenAlreadyExists, violated.Reason)

	require.True(t, f.wh.Exists("PROD_STAGING"))
	require.Empty(t, f.runner.invocations)
}

func TestBlueGreenCommand_DrainsExistingStaging(t *testing.T) {
	f := newBlueGreenFixture(t)
	f.wh.AddDatabase("PROD_STAGING")
	f.params.Sleep = func(context.Context, time.Duration) error {
		f.sleeps++
		f.wh.Drop("PROD_STAGING")
		return nil
	}

	_, err := f.run(t, "--production-database", "PROD", "--drop-staging-db", "--drop-staging-db-after", "3")
	require.NoError(t, err)
	require.Equal(t, 1, f.sleeps)
	require.Len(t, f.runner.invocations, 1)
}

func TestBlueGreenCommand_BuildFailure(t *testing.T) {
	f := newBlueGreenFixture(t)
	f.runner.err = &deploy.BuildFailed{ExitCode: 1, StderrTail: "Compilation Error"}

	out, err := f.run(t, "--production-database", "PROD", "--drop-staging-db-on-failure")
	require.Error(t, err)
	require.Equal(t, 5, exitCode(err))
	require.Contains(t, out, "failed in BUILT (build)")
	require.Contains(t, out, "Compilation Error")

	require.True(t, f.wh.Exists("PROD"))
	require.False(t, f.wh.Exists("PROD_STAGING"))
	require.Empty(t, f.wh.StatementsOfKind("ALTER DATABASE"))
}

func TestBlueGreenCommand_DryRun(t *testing.T) {
	f := newBlueGreenFixture(t)

	out, err := f.run(t,
		"--production-database", "PROD",
		"--staging-suffix", "next",
		"--drop-staging-db",
		"--drop-staging-db-after", "5",
		"--full-refresh",
		"--workers", "4",
		"--project-dir", "analytics",
		"--dbt-executable", "/opt/dbt/bin/dbt",
		"--dry-run",
	)
	require.NoError(t, err)
	require.Contains(t, out, "Production database: PROD\n")
	require.Contains(t, out, "Staging database:    PROD_NEXT\n")
	require.Contains(t, out, "Workers:             4\n")
	require.Contains(t, out, "PRECHECK -> DRAIN -> CREATED -> SCHEMAS_CLONED -> BUILT -> GRANTS_CLONED -> SWAPPED -> DROPPED -> DONE")
	require.Contains(t, out, "Excluded schemas:    ACCOUNT_USAGE, INFORMATION_SCHEMA, PUBLIC, SECURITY, SNOWFLAKE, UTILS\n")
	require.Contains(t, out, "/opt/dbt/bin/dbt build --fail-fast --full-refresh (in analytics)")

	require.Empty(t, f.connector.targets)
	require.Empty(t, f.wh.Statements())
	require.Empty(t, f.runner.invocations)
}

func TestBlueGreenCommand_DryRunInvalidPlan(t *testing.T) {
	f := newBlueGreenFixture(t)

	_, err := f.run(t, "--production-database", "PROD", "--staging-database", "PROD", "--dry-run")
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))
}

func TestBlueGreenCommand_ConfigOverrides(t *testing.T) {
	f := newBlueGreenFixture(t)
	f.params.Config.ProjectDir = "from-file"

	_, err := f.run(t, "--production-database", "PROD", "--workers", "2")
	require.NoError(t, err)
	require.Equal(t, 2, f.params.Config.Workers)
	require.Equal(t, "from-file", f.runner.invocations[0].Dir)
	require.LessOrEqual(t, f.wh.CursorsOpened(), 2*3)
}
