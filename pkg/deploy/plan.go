package deploy

import (
	"strings"

	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/utils"
)

type (
	// Plan describes a single deployment. It is built once from flags,
	// environment and the project file and is read-only afterwards.
	Plan struct {
		// ProductionDatabase is the blue database
		ProductionDatabase string

		// StagingDatabase names the green database explicitly
		StagingDatabase string

		// StagingSuffix names the green database as {blue}_{suffix}
		StagingSuffix string

		// DropStagingAtStart allows an existing green database to be dropped
		DropStagingAtStart bool

		// DropStagingOnFailure drops green when a pre-swap step fails
		DropStagingOnFailure bool

		// KeepStagingOnSuccess skips dropping the old production database
		KeepStagingOnSuccess bool

		// DrainMinutes bounds the wait for an existing green database to
		// disappear before the deployment gives up
		DrainMinutes int

		// Workers is the concurrent executor pool size
		Workers int

		// ProjectDir is the working directory of the Transformation Runner
		ProjectDir string

		// Build controls the Transformation Runner arguments
		Build BuildOptions

		blue  utils.Identifier
		green utils.Identifier
	}

	// BuildOptions are the inputs to Args.
	BuildOptions struct {
		Defer       bool
		FullRefresh bool
		Selectors   []string
		Target      string
	}
)

// Validate checks the plan and resolves the blue and green identifiers. Every
// failure is a *ConfigurationError.
func (p *Plan) Validate() error {
	if p.StagingDatabase != "" && p.StagingSuffix != "" {
		return configError("staging database %q and staging suffix %q are mutually exclusive", p.StagingDatabase, p.StagingSuffix)
	}

	if strings.TrimSpace(p.ProductionDatabase) == "" {
		return configError("production database is required (set --production-database or %s)", consts.MainDatabaseEnv)
	}

	blue, err := utils.NewIdentifier(p.ProductionDatabase)
	if err != nil {
		return &ConfigurationError{Msg: "production database", Err: err}
	}

	var green utils.Identifier
	if p.StagingDatabase != "" {
		green, err = utils.NewIdentifier(p.StagingDatabase)
	} else {
		suffix := p.StagingSuffix
		if suffix == "" {
			suffix = consts.DefaultStagingSuffix
		}
		green, err = blue.Suffixed(suffix)
	}
	if err != nil {
		return &ConfigurationError{Msg: "staging database", Err: err}
	}

	if blue == green {
		return configError("production and staging database are both %s", blue)
	}

	if p.Workers < 1 {
		return configError("workers must be at least 1, got %d", p.Workers)
	}

	if p.DrainMinutes < 0 {
		return configError("drain minutes must not be negative, got %d", p.DrainMinutes)
	}

	p.blue, p.green = blue, green
	return nil
}

// Blue returns the production database. Only valid after Validate.
func (p *Plan) Blue() utils.Identifier { return p.blue }

// Green returns the staging database. Only valid after Validate.
func (p *Plan) Green() utils.Identifier { return p.green }

// Args returns the Transformation Runner argument vector.
//
// Example:
//
//	BuildOptions{FullRefresh: true, Target: "prod"}.Args()
//	// [build --fail-fast --full-refresh -t prod]
func (o BuildOptions) Args() []string {
	args := []string{"build", "--fail-fast"}

	if o.Defer {
		args = append(args, "--defer", "--state", "logs", "-s", "state:modified+")
	} else {
		args = append(args, o.Selectors...)
	}

	if o.FullRefresh {
		args = append(args, "--full-refresh")
	}

	if o.Target != "" {
		args = append(args, "-t", o.Target)
	}

	return args
}

// Phases lists the states a successful run of the plan passes through. DRAIN
// is included when the plan allows it; at run time it is only entered if the
// staging database already exists.
func (p *Plan) Phases() []State {
	states := []State{StatePrecheck}
	if p.DropStagingAtStart && p.DrainMinutes > 0 {
		states = append(states, StateDrain)
	}

	return append(states,
		StateCreated,
		StateSchemasCloned,
		StateBuilt,
		StateGrantsCloned,
		StateSwapped,
		StateDropped,
		StateDone,
	)
}
