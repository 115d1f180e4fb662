package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Config     *config.Config
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the bluegreen CLI application with the given
// version and command-line arguments.
//
// Global Flags:
//   - --dir, -d: Working directory (defaults to current directory)
//   - --config, -c: Project file, $BLUEGREEN_CONFIG (defaults to bluegreen.yaml)
//   - --log-level: debug, info, warn or error
//   - --log-format: text or json
//
// The project file is reloaded after changing to --dir so that relative paths
// resolve against the working directory. The process exit code is derived
// from the error class returned by the command, see deploy.ExitCode.
//
// Example usage:
//
//	bluegreen --dir analytics blue-green --production-database PROD
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := newApp(p)
	ctx, cancel := context.WithCancel(p.Ctx)
	done := make(chan struct{})

	// The command outlives fx's start timeout, so it runs in the background
	// and is cancelled when the application stops, e.g. on SIGINT.
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				code := exitCode(app.Run(ctx, p.Args))
				_ = p.Shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func newApp(p Params) *cli.Command {
	return &cli.Command{
		Name:  "bluegreen",
		Usage: "Zero-downtime blue-green deployments for Snowflake databases",
		Description: `bluegreen builds a staging copy of a production database with zero-copy
clones, runs the transformation build against it and atomically swaps it
into production.`,
		Version: p.Version.Version,

		// dbt selectors use commas for intersection
		DisableSliceFlagSeparator: true,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the working directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the bluegreen project file",
				Sources: cli.EnvVars(consts.ConfigEnv),
				Value:   consts.DefaultConfigFile,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text, json)",
				Value: "text",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := configureLogging(cmd.ErrWriter, cmd.String("log-level"), cmd.String("log-format")); err != nil {
				return ctx, err
			}

			if err := os.Chdir(cmd.String("dir")); err != nil {
				return ctx, &deploy.ConfigurationError{Msg: "working directory", Err: err}
			}

			if err := reloadConfig(p.Config, cmd.String("config"), cmd.IsSet("config")); err != nil {
				return ctx, &deploy.ConfigurationError{Msg: "project file", Err: err}
			}

			return ctx, nil
		},
		Commands: p.Commands,
	}
}

// reloadConfig replaces cfg in place so that commands holding the pointer see
// the file selected on the command line. An explicitly named file must exist.
func reloadConfig(cfg *config.Config, path string, required bool) error {
	if cfg == nil {
		return nil
	}

	load := config.Load
	if required {
		load = config.LoadConfigFile
	}

	loaded, err := load(path)
	if err != nil {
		return err
	}

	*cfg = *loaded
	return nil
}

func configureLogging(w io.Writer, level, format string) error {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return &deploy.ConfigurationError{Msg: "log level", Err: err}
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return &deploy.ConfigurationError{Msg: fmt.Sprintf("unknown log format %q", format)}
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// exitCode logs err unless the deployment already reported it and maps it to
// the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var reported *deploymentFailed
	if !errors.As(err, &reported) {
		slog.Error("Error running command", "class", deploy.Classify(err), "err", err)
	}

	return deploy.ExitCode(err)
}
