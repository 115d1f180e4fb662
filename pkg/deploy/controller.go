package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/clone"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/utils"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
)

type (
	// Target identifies the deployment a session is opened for.
	Target struct {
		Blue  utils.Identifier
		Green utils.Identifier
		RunID string
	}

	// Connector opens the warehouse session for a deployment. Credentials are
	// addressed by the blue database name.
	Connector interface {
		Connect(ctx context.Context, target Target) (warehouse.Session, error)
	}

	// Invocation is a single Transformation Runner call.
	Invocation struct {
		// Dir is the working directory
		Dir string

		// Args is the argument vector, without the executable
		Args []string

		// Env holds variables overriding the inherited environment
		Env map[string]string
	}

	// Runner invokes the Transformation Runner and waits for it to exit. A
	// non-zero exit should be reported as a *BuildFailed.
	Runner interface {
		Run(ctx context.Context, inv Invocation) error
	}

	// Config contains configuration options for creating a new Controller.
	Config struct {
		Connector Connector
		Runner    Runner

		// DrainInterval is the wait before each drain check. Defaults to
		// consts.DefaultDrainInterval.
		DrainInterval time.Duration

		// Sleep waits between drain checks. Defaults to a timer honouring ctx.
		Sleep func(context.Context, time.Duration) error

		// Logger defaults to slog.Default()
		Logger *slog.Logger

		// RunID defaults to a random UUID
		RunID string
	}

	// Controller drives a single deployment through its state machine.
	//
	// Example usage:
	//
	//	ctrl := deploy.New(deploy.Config{
	//		Connector: snowflake.NewConnector("bluegreen"),
	//		Runner:    runner.New("dbt"),
	//	})
	//
	//	result := ctrl.Run(ctx, plan)
	//	if result.Err != nil {
	//		os.Exit(deploy.ExitCode(result.Err))
	//	}
	Controller struct {
		connector     Connector
		runner        Runner
		drainInterval time.Duration
		sleep         func(context.Context, time.Duration) error
		logger        *slog.Logger
		runID         string
	}

	// Result is produced once per deployment.
	Result struct {
		RunID string

		// State is DONE or FAILED
		State State

		// FailedState is the state whose transition failed, if any
		FailedState State

		// Err is the error that failed the deployment
		Err error

		// Blue and Green are the resolved database names
		Blue  utils.Identifier
		Green utils.Identifier

		// Schemas cloned into green
		Schemas []utils.Identifier

		// Phases records the time spent on each completed transition
		Phases []Phase
	}

	// Phase is the timing of one completed transition.
	Phase struct {
		State   State
		Elapsed time.Duration
	}

	// step is one transition of the state machine. Steps flagged compensate
	// drop green on failure when the plan asks for it.
	step struct {
		state      State
		compensate bool
		skip       func() bool
		run        func(context.Context) error
	}

	// deployment holds the state of a single Run.
	deployment struct {
		*Controller

		plan        *Plan
		result      *Result
		logger      *slog.Logger
		session     warehouse.Session
		ops         *warehouse.Operations
		coordinator *clone.Coordinator
		greenExists bool
	}
)

// New creates a Controller.
func New(config Config) *Controller {
	ctrl := &Controller{
		connector:     config.Connector,
		runner:        config.Runner,
		drainInterval: config.DrainInterval,
		sleep:         config.Sleep,
		logger:        config.Logger,
		runID:         config.RunID,
	}

	if ctrl.drainInterval <= 0 {
		ctrl.drainInterval = consts.DefaultDrainInterval
	}

	if ctrl.sleep == nil {
		ctrl.sleep = sleep
	}

	if ctrl.logger == nil {
		ctrl.logger = slog.Default()
	}

	if ctrl.runID == "" {
		ctrl.runID = uuid.NewString()
	}

	return ctrl
}

// RunID returns the identifier attached to the session and every log line.
func (c *Controller) RunID() string {
	return c.runID
}

// Run executes the plan and returns its result. The result's Err is nil
// exactly when State is DONE.
func (c *Controller) Run(ctx context.Context, plan Plan) *Result {
	d := &deployment{
		Controller: c,
		plan:       &plan,
		result:     &Result{RunID: c.runID, State: StateInit},
		logger:     c.logger.With("run_id", c.runID),
	}
	defer d.close()

	for _, s := range d.steps() {
		if s.skip != nil && s.skip() {
			continue
		}

		d.enter(s.state)
		start := time.Now()

		if err := s.run(ctx); err != nil {
			d.fail(ctx, s, err)
			return d.result
		}

		d.result.Phases = append(d.result.Phases, Phase{State: s.state, Elapsed: time.Since(start)})
	}

	d.enter(StateDone)
	d.logger.Info("Deployment complete")

	return d.result
}

func (d *deployment) steps() []step {
	return []step{
		{state: StatePrecheck, run: d.precheck},
		{state: StateDrain, run: d.drain, skip: d.skipDrain},
		{state: StateCreated, run: d.create, compensate: true},
		{state: StateSchemasCloned, run: d.cloneSchemas, compensate: true},
		{state: StateBuilt, run: d.build, compensate: true},
		{state: StateGrantsCloned, run: d.cloneGrants, compensate: true},
		{state: StateSwapped, run: d.swap},
		{state: StateDropped, run: d.dropOld},
	}
}

func (d *deployment) enter(state State) {
	d.result.State = state
	d.logger.Info("Entering state", "state", state)
}

// precheck validates the plan, opens the session and checks for green. No
// session is opened for an invalid plan.
func (d *deployment) precheck(ctx context.Context) error {
	if err := d.plan.Validate(); err != nil {
		return err
	}

	d.result.Blue, d.result.Green = d.plan.Blue(), d.plan.Green()
	d.logger = d.logger.With("blue", d.plan.Blue(), "green", d.plan.Green())

	session, err := d.connector.Connect(ctx, Target{
		Blue:  d.plan.Blue(),
		Green: d.plan.Green(),
		RunID: d.runID,
	})
	if err != nil {
		if errors.Is(err, warehouse.ErrMissingCredentials) {
			return &ConfigurationError{Msg: "warehouse credentials", Err: err}
		}
		return &DriverError{Err: errors.Wrap(err, "failed to open warehouse session")}
	}

	d.session = session
	d.ops = warehouse.New(session)
	d.coordinator = clone.New(clone.Config{
		Operations: d.ops,
		Workers:    d.plan.Workers,
		Logger:     d.logger,
	})

	exists, err := d.ops.DatabaseExists(ctx, d.plan.Green())
	if err != nil {
		return err
	}

	d.greenExists = exists
	if exists && !d.plan.DropStagingAtStart {
		return &PreconditionViolated{Reason: GreenAlreadyExists, Database: d.plan.Green()}
	}

	return nil
}

func (d *deployment) skipDrain() bool {
	return !d.greenExists || d.plan.DrainMinutes == 0
}

// drain waits for an existing green database to be released. It only
// observes; the database is never dropped here.
func (d *deployment) drain(ctx context.Context) error {
	for i := 1; i <= d.plan.DrainMinutes; i++ {
		d.logger.Info("Waiting for staging database to be dropped",
			"iteration", i,
			"max_iterations", d.plan.DrainMinutes,
			"interval", d.drainInterval,
		)

		if err := d.sleep(ctx, d.drainInterval); err != nil {
			return errors.Wrap(err, "drain interrupted")
		}

		exists, err := d.ops.DatabaseExists(ctx, d.plan.Green())
		if err != nil {
			return err
		}

		if !exists {
			d.logger.Info("Staging database is gone", "iteration", i)
			d.greenExists = false
			return nil
		}
	}

	return &PreconditionViolated{Reason: DrainTimeout, Database: d.plan.Green()}
}

func (d *deployment) create(ctx context.Context) error {
	if d.greenExists {
		d.logger.Info("Dropping existing staging database")
		if err := d.ops.DropDatabase(ctx, d.plan.Green()); err != nil {
			return err
		}
	}

	err := d.ops.CreateDatabase(ctx, d.plan.Green())
	if errors.Is(err, warehouse.ErrAlreadyExists) {
		return &PreconditionViolated{Reason: NameCollision, Database: d.plan.Green(), Err: err}
	}

	return err
}

func (d *deployment) cloneSchemas(ctx context.Context) error {
	summary, err := d.coordinator.CloneAllSchemas(ctx, d.plan.Blue(), d.plan.Green())
	d.result.Schemas = summary.Schemas

	return err
}

func (d *deployment) build(ctx context.Context) error {
	inv := Invocation{
		Dir:  d.plan.ProjectDir,
		Args: d.plan.Build.Args(),
		Env: map[string]string{
			d.plan.Blue().String() + "_DATABASE": d.plan.Green().String(),
		},
	}

	d.logger.Info("Running build", "dir", inv.Dir, "args", inv.Args)

	err := d.runner.Run(ctx, inv)
	if err == nil {
		return nil
	}

	var failed *BuildFailed
	if errors.As(err, &failed) {
		return err
	}

	return &BuildFailed{ExitCode: -1, Err: err}
}

func (d *deployment) cloneGrants(ctx context.Context) error {
	_, err := d.coordinator.CloneAllGrants(ctx, d.plan.Blue(), d.plan.Green())
	return err
}

func (d *deployment) swap(ctx context.Context) error {
	if err := d.ops.SwapDatabases(ctx, d.plan.Blue(), d.plan.Green()); err != nil {
		return &SwapFailed{Err: err}
	}

	return nil
}

// dropOld removes the previous production database, which the swap left
// under the green name. Failures are logged since the deployment succeeded.
func (d *deployment) dropOld(ctx context.Context) error {
	if d.plan.KeepStagingOnSuccess {
		d.logger.Info("Keeping previous production database", "database", d.plan.Green())
		return nil
	}

	if err := d.ops.DropDatabase(ctx, d.plan.Green()); err != nil {
		d.logger.Warn("Failed to drop previous production database; drop it manually",
			"database", d.plan.Green(),
			"err", err,
		)
	}

	return nil
}

func (d *deployment) fail(ctx context.Context, s step, err error) {
	if !classified(err) {
		err = &DriverError{Err: err}
	}

	d.result.FailedState = s.state
	d.result.Err = err

	if s.compensate && d.plan.DropStagingOnFailure {
		d.enter(StateFailureCleanup)

		// cleanup still runs when the deployment was cancelled
		if dropErr := d.ops.DropDatabase(context.WithoutCancel(ctx), d.plan.Green()); dropErr != nil {
			cleanup := &CleanupFailed{Database: d.plan.Green(), Err: dropErr}
			d.logger.Error("Cleanup failed", "class", cleanup.Class(), "err", cleanup)
		}
	}

	d.enter(StateFailed)
	d.logger.Error("Deployment failed", "state", s.state, "class", Classify(err), "err", err)
}

func (d *deployment) close() {
	if d.session == nil {
		return
	}

	if err := d.session.Close(); err != nil {
		d.logger.Warn("Failed to close warehouse session", "err", err)
	}
}

func classified(err error) bool {
	var c interface{ Class() string }
	return errors.As(err, &c)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
