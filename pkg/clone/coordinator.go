package clone

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/executor"
	"github.com/pseudomuto/bluegreen/pkg/utils"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
)

type (
	// Coordinator copies schemas and grants from a blue database to a green
	// one. It holds a non-owning reference to the warehouse operations and
	// builds a fresh executor for every phase.
	Coordinator struct {
		ops     *warehouse.Operations
		workers int
		logger  *slog.Logger
	}

	// Config contains configuration options for creating a new Coordinator.
	Config struct {
		Operations *warehouse.Operations
		Workers    int
		Logger     *slog.Logger
	}

	// Summary describes the work done by a coordinator call.
	Summary struct {
		// Schemas that were cloned, in the order the warehouse listed them
		Schemas []utils.Identifier

		// Statements registered per phase, keyed by phase name
		Statements map[string]int

		// Elapsed time per phase, keyed by phase name
		Elapsed map[string]time.Duration
	}
)

const (
	// PhaseClone creates every green schema as a zero-copy clone.
	PhaseClone = "clone_schemas"

	// PhaseSchemaGrants re-issues the schema grants on the clones.
	PhaseSchemaGrants = "schema_grants"

	// PhaseDatabaseGrants re-issues the database grants on green.
	PhaseDatabaseGrants = "database_grants"
)

// New creates a Coordinator.
func New(config Config) *Coordinator {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		ops:     config.Operations,
		workers: config.Workers,
		logger:  logger,
	}
}

// CloneAllSchemas clones every non-excluded schema of blue into green, then
// copies the grants on each schema. All clones complete before the first
// grant is issued.
func (c *Coordinator) CloneAllSchemas(ctx context.Context, blue, green utils.Identifier) (*Summary, error) {
	summary := newSummary()

	schemas, err := c.ops.ListSchemas(ctx, blue)
	if err != nil {
		return summary, err
	}

	for _, s := range schemas {
		summary.Schemas = append(summary.Schemas, s.Name)
	}

	err = c.phase(ctx, summary, PhaseClone, func(exec *executor.Executor) error {
		for _, s := range schemas {
			stmt, err := warehouse.CloneSchemaStatement(blue, s.Name, green, s.Name)
			if err != nil {
				return err
			}
			exec.Register(stmt)
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	err = c.phase(ctx, summary, PhaseSchemaGrants, func(exec *executor.Executor) error {
		for _, s := range schemas {
			grants, err := c.ops.ListSchemaGrants(ctx, blue, s.Name)
			if err != nil {
				return err
			}

			if err := c.register(exec, grants, green, s.Name); err != nil {
				return err
			}
		}
		return nil
	})

	return summary, err
}

// CloneAllGrants copies the grants on the blue database onto green.
func (c *Coordinator) CloneAllGrants(ctx context.Context, blue, green utils.Identifier) (*Summary, error) {
	summary := newSummary()

	err := c.phase(ctx, summary, PhaseDatabaseGrants, func(exec *executor.Executor) error {
		grants, err := c.ops.ListDatabaseGrants(ctx, blue)
		if err != nil {
			return err
		}

		return c.register(exec, grants, green)
	})

	return summary, err
}

// phase fills a fresh executor with prepare, runs it and records the timing.
func (c *Coordinator) phase(
	ctx context.Context,
	summary *Summary,
	name string,
	prepare func(*executor.Executor) error,
) error {
	start := time.Now()

	exec := executor.New(executor.Config{
		Session: c.ops.Session(),
		Workers: c.workers,
		Logger:  c.logger,
	})

	if err := prepare(exec); err != nil {
		return err
	}

	summary.Statements[name] = exec.Len()
	c.logger.Info("Starting phase", "phase", name, "statements", exec.Len())

	if err := exec.Run(ctx); err != nil {
		return errors.Wrapf(err, "phase %s failed", name)
	}

	elapsed := time.Since(start)
	summary.Elapsed[name] = elapsed
	c.logger.Info("Completed phase", "phase", name, "elapsed_seconds", elapsed.Seconds())

	return nil
}

// register rewrites each grant against target and adds it to the batch.
// Duplicate rows are registered as-is since grants are idempotent.
func (c *Coordinator) register(exec *executor.Executor, grants []warehouse.GrantRecord, target ...utils.Identifier) error {
	for _, g := range grants {
		if !g.ToRole() {
			c.logger.Debug("Skipping grant to non-role grantee",
				"privilege", g.Privilege,
				"object", g.Name,
				"granted_to", g.GrantedTo,
				"grantee", g.Grantee,
			)
			continue
		}

		if _, err := utils.ExactIdentifier(g.Grantee); err != nil {
			c.logger.Warn("Skipping grant to unsupported grantee",
				"privilege", g.Privilege,
				"object", g.Name,
				"grantee", g.Grantee,
				"err", err,
			)
			continue
		}

		stmt, err := warehouse.GrantStatement(g, target...)
		if err != nil {
			return errors.Wrapf(err, "failed to rewrite grant of %s on %s", g.Privilege, g.Name)
		}
		exec.Register(stmt)
	}

	return nil
}

func newSummary() *Summary {
	return &Summary{
		Statements: make(map[string]int),
		Elapsed:    make(map[string]time.Duration),
	}
}
