package cmd

import (
	"context"

	"github.com/pseudomuto/bluegreen/pkg/config"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/pseudomuto/bluegreen/pkg/runner"
	"github.com/pseudomuto/bluegreen/pkg/snowflake"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	"go.uber.org/fx"
)

var Module = fx.Module("cli",
	fx.Provide(
		fx.Annotate(blueGreen, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(newConnector, fx.As(new(deploy.Connector))),
		fx.Annotate(newRunner, fx.As(new(deploy.Runner))),
	),
	fx.Invoke(Run),
)

type (
	// connector opens snowflake sessions with the project settings in effect
	// when the deployment starts, after flags have been applied.
	connector struct {
		cfg *config.Config
	}

	// buildRunner invokes the configured Transformation Runner executable.
	buildRunner struct {
		cfg *config.Config
	}
)

func newConnector(cfg *config.Config) *connector {
	return &connector{cfg: cfg}
}

func newRunner(cfg *config.Config) *buildRunner {
	return &buildRunner{cfg: cfg}
}

func (c *connector) Connect(ctx context.Context, target deploy.Target) (warehouse.Session, error) {
	conn := snowflake.NewConnector(c.cfg.QueryTag)
	// one connection per executor worker plus one for metadata queries
	conn.MaxConns = c.cfg.Workers + 1
	return conn.Connect(ctx, target)
}

func (r *buildRunner) Run(ctx context.Context, inv deploy.Invocation) error {
	return runner.New(r.cfg.Executable).Run(ctx, inv)
}
