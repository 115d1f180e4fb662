package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	blueGreenParams struct {
		fx.In

		Config    *config.Config
		Connector deploy.Connector
		Runner    deploy.Runner

		// Sleep overrides the drain wait, used by tests
		Sleep func(context.Context, time.Duration) error `optional:"true"`
	}

	// deploymentFailed wraps an error the controller has already logged.
	deploymentFailed struct {
		err error
	}
)

func (e *deploymentFailed) Error() string { return e.err.Error() }
func (e *deploymentFailed) Unwrap() error { return e.err }

// blueGreen creates the blue-green command which deploys a transformation
// build to production through a zero-copy staging database.
//
// The command resolves the production (blue) and staging (green) databases,
// clones every schema of blue into green, runs the Transformation Runner
// against green, copies the database grants and swaps the two databases.
// The previous production database is dropped afterwards unless
// --keep-staging-db-on-success is set.
//
// Example usage:
//
//	# Deploy PROD through PROD_STAGING
//	bluegreen blue-green --production-database PROD
//
//	# Reuse a leftover staging database after waiting up to 10 minutes for it
//	bluegreen blue-green --production-database PROD --drop-staging-db --drop-staging-db-after 10
//
//	# Only build modified models, against the prod target
//	bluegreen blue-green --defer -t prod
//
//	# Show the plan without connecting
//	bluegreen blue-green --production-database PROD --dry-run
func blueGreen(p blueGreenParams) *cli.Command {
	return &cli.Command{
		Name:  "blue-green",
		Usage: "Build into a staging clone of production and swap it in",
		Description: `Deploy a transformation build without downtime.

The staging database is created from zero-copy clones of every production
schema. The build runs against staging with {PRODUCTION}_DATABASE pointing at
it, after which the database grants are copied and the two databases are
swapped atomically.

Credentials are read from {PRODUCTION}_ACCOUNT, {PRODUCTION}_USER,
{PRODUCTION}_PASSWORD, {PRODUCTION}_WAREHOUSE, {PRODUCTION}_DATABASE,
{PRODUCTION}_ROLE and {PRODUCTION}_SCHEMA. A .env file in the working or
project directory is loaded first.

Exit codes: 0 success, 2 configuration, 3 precondition, 4 DDL, 5 build,
6 swap, 1 anything else.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "production-database",
				Usage:   "the production (blue) database",
				Sources: cli.EnvVars(consts.MainDatabaseEnv),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "staging-database",
				Usage: "the staging (green) database, mutually exclusive with --staging-suffix",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:        "staging-suffix",
				Usage:       "name the staging database {production}_{suffix}",
				DefaultText: consts.DefaultStagingSuffix,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "drop-staging-db",
				Usage: "drop an existing staging database before starting",
			},
			&cli.IntFlag{
				Name:  "drop-staging-db-after",
				Usage: "minutes to wait for an existing staging database to disappear before dropping it",
			},
			&cli.BoolFlag{
				Name:  "drop-staging-db-on-failure",
				Usage: "drop the staging database when the deployment fails before the swap",
			},
			&cli.BoolFlag{
				Name:  "keep-staging-db-on-success",
				Usage: "keep the previous production database after the swap",
			},
			&cli.StringSliceFlag{
				Name:  "dbt-selector",
				Usage: "selector arguments passed to the build, e.g. --dbt-selector=-s --dbt-selector=tag:hourly",
			},
			&cli.BoolFlag{
				Name:  "full-refresh",
				Usage: "pass --full-refresh to the build",
			},
			&cli.BoolFlag{
				Name:  "defer",
				Usage: "only build models modified since the state in ./logs",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "the build target",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.IntFlag{
				Name:        "workers",
				Usage:       "concurrent DDL workers",
				DefaultText: fmt.Sprint(consts.DefaultWorkers),
			},
			&cli.StringFlag{
				Name:        "project-dir",
				Usage:       "the build project directory",
				DefaultText: consts.DefaultProjectDir,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:        "dbt-executable",
				Usage:       "the build executable",
				DefaultText: consts.DefaultExecutable,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "print the deployment plan without connecting",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBlueGreen(ctx, cmd, p)
		},
	}
}

func runBlueGreen(ctx context.Context, cmd *cli.Command, p blueGreenParams) error {
	cfg := p.Config
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("project-dir") {
		cfg.ProjectDir = cmd.String("project-dir")
	}
	if cmd.IsSet("dbt-executable") {
		cfg.Executable = cmd.String("dbt-executable")
	}

	if err := config.LoadEnv(".", cfg.ProjectDir); err != nil {
		return &deploy.ConfigurationError{Msg: "environment", Err: err}
	}

	plan := deploy.Plan{
		ProductionDatabase:   cmd.String("production-database"),
		StagingDatabase:      cmd.String("staging-database"),
		StagingSuffix:        cmd.String("staging-suffix"),
		DropStagingAtStart:   cmd.Bool("drop-staging-db"),
		DropStagingOnFailure: cmd.Bool("drop-staging-db-on-failure"),
		KeepStagingOnSuccess: cmd.Bool("keep-staging-db-on-success"),
		DrainMinutes:         cmd.Int("drop-staging-db-after"),
		Build: deploy.BuildOptions{
			Defer:       cmd.Bool("defer"),
			FullRefresh: cmd.Bool("full-refresh"),
			Selectors:   cmd.StringSlice("dbt-selector"),
			Target:      cmd.String("target"),
		},
	}
	cfg.ApplyTo(&plan)

	// .env may be the only place MAIN_DATABASE is set
	if plan.ProductionDatabase == "" {
		plan.ProductionDatabase = strings.TrimSpace(os.Getenv(consts.MainDatabaseEnv))
	}

	w := cmd.Root().Writer

	if cmd.Bool("dry-run") {
		if err := plan.Validate(); err != nil {
			return err
		}

		printPlan(w, &plan, cfg.Executable)
		return nil
	}

	ctrl := deploy.New(deploy.Config{
		Connector:     p.Connector,
		Runner:        p.Runner,
		DrainInterval: cfg.DrainInterval,
		Sleep:         p.Sleep,
	})

	result := ctrl.Run(ctx, plan)
	printResult(w, result)

	if result.Err != nil {
		return &deploymentFailed{err: result.Err}
	}

	return nil
}

func printPlan(w io.Writer, plan *deploy.Plan, executable string) {
	phases := make([]string, 0, len(plan.Phases()))
	for _, s := range plan.Phases() {
		phases = append(phases, s.String())
	}

	fmt.Fprintln(w, "Deployment plan (dry run)")
	fmt.Fprintf(w, "  Production database: %s\n", plan.Blue())
	fmt.Fprintf(w, "  Staging database:    %s\n", plan.Green())
	fmt.Fprintf(w, "  Workers:             %d\n", plan.Workers)
	fmt.Fprintf(w, "  Phases:              %s\n", strings.Join(phases, " -> "))
	fmt.Fprintf(w, "  Excluded schemas:    %s\n", strings.Join(warehouse.ExcludedSchemas(), ", "))
	fmt.Fprintf(w, "  Build:               %s %s (in %s)\n", executable, strings.Join(plan.Build.Args(), " "), plan.ProjectDir)
}

func printResult(w io.Writer, result *deploy.Result) {
	if result.Err != nil {
		fmt.Fprintf(w, "Deployment %s failed in %s (%s): %v\n",
			result.RunID, result.FailedState, deploy.Classify(result.Err), result.Err)
	} else {
		fmt.Fprintf(w, "Deployment %s complete: %s swapped with %s\n",
			result.RunID, result.Blue, result.Green)
	}

	for _, phase := range result.Phases {
		fmt.Fprintf(w, "  %-16s %6.1fs\n", phase.State, phase.Elapsed.Seconds())
	}

	if len(result.Schemas) > 0 {
		fmt.Fprintf(w, "  Cloned %d schema(s)\n", len(result.Schemas))
	}
}
