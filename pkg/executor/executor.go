package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	"golang.org/x/sync/errgroup"
)

type (
	// Executor runs a batch of independent DDL statements with bounded
	// parallelism.
	//
	// Statements are assigned round-robin in registration order: statement i
	// goes to worker i mod N. Each worker derives its own cursor from the
	// shared session and submits its statements asynchronously, one after the
	// other, leaving the warehouse to serialize them per cursor.
	//
	// Example usage:
	//
	//	exec := executor.New(executor.Config{
	//		Session: session,
	//		Workers: 20,
	//	})
	//
	//	for _, stmt := range statements {
	//		exec.Register(stmt)
	//	}
	//
	//	if err := exec.Run(ctx); err != nil {
	//		var ddlErr *executor.DDLExecutionError
	//		if errors.As(err, &ddlErr) {
	//			log.Printf("rejected: %s", ddlErr.Statement)
	//		}
	//	}
	Executor struct {
		session    warehouse.Session
		workers    int
		logger     *slog.Logger
		statements []string
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		// Session the worker cursors are derived from
		Session warehouse.Session

		// Workers is the pool size; values below 1 use consts.DefaultWorkers
		Workers int

		// Logger defaults to slog.Default()
		Logger *slog.Logger
	}

	// DDLExecutionError is returned by Run when the warehouse rejects a
	// statement.
	DDLExecutionError struct {
		Statement string
		Err       error
	}
)

// New creates an executor with an empty batch.
func New(config Config) *Executor {
	workers := config.Workers
	if workers < 1 {
		workers = consts.DefaultWorkers
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		session: config.Session,
		workers: workers,
		logger:  logger,
	}
}

// Register appends a statement to the pending batch.
func (e *Executor) Register(stmt string) {
	e.statements = append(e.statements, stmt)
}

// Len returns the number of pending statements.
func (e *Executor) Len() int {
	return len(e.statements)
}

// Run dispatches the pending batch and returns once every statement has been
// submitted and acknowledged by the warehouse. The first error encountered is
// returned as a *DDLExecutionError; statements already in flight on other
// workers are allowed to finish. The batch is discarded when Run returns.
func (e *Executor) Run(ctx context.Context) error {
	batch := e.statements
	e.statements = nil

	if len(batch) == 0 {
		return nil
	}

	n := min(e.workers, len(batch))
	partitions := make([][]string, n)
	for i, stmt := range batch {
		partitions[i%n] = append(partitions[i%n], stmt)
	}

	e.logger.Debug("Dispatching statements", "statements", len(batch), "workers", n)

	var g errgroup.Group
	for id, assigned := range partitions {
		g.Go(func() error {
			return e.work(ctx, id, assigned)
		})
	}

	return g.Wait()
}

func (e *Executor) work(ctx context.Context, id int, statements []string) error {
	cursor, err := e.session.Cursor(ctx)
	if err != nil {
		return errors.Wrapf(err, "worker %d failed to open cursor", id)
	}
	defer func() { _ = cursor.Close() }()

	type submission struct {
		stmt    string
		pending warehouse.Pending
	}

	var (
		submitted = make([]submission, 0, len(statements))
		firstErr  error
	)

	for _, stmt := range statements {
		e.logger.Debug("Submitting statement", "worker", id, "sql", stmt)

		pending, err := cursor.ExecAsync(ctx, stmt)
		if err != nil {
			firstErr = &DDLExecutionError{Statement: stmt, Err: err}
			break
		}

		submitted = append(submitted, submission{stmt: stmt, pending: pending})
	}

	// Everything submitted is awaited, even after a failure, so nothing this
	// worker started is still running when Run returns.
	for _, s := range submitted {
		if err := s.pending.Wait(); err != nil && firstErr == nil {
			firstErr = &DDLExecutionError{Statement: s.stmt, Err: err}
		}
	}

	return firstErr
}

func (e *DDLExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %q: %v", e.Statement, e.Err)
}

// Class returns the taxonomy class of the error.
func (e *DDLExecutionError) Class() string { return "ddl" }

func (e *DDLExecutionError) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *DDLExecutionError) Cause() error { return e.Err }
