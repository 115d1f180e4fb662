// Package executor provides the concurrent DDL executor used by blue-green
// deployments.
//
// An Executor collects independent statements with Register and dispatches
// them with Run across a fixed pool of workers. Workers share one warehouse
// session, each through its own cursor, and submit their statements with the
// driver's asynchronous primitive. Run returns once every submission has been
// acknowledged.
//
// # Distribution
//
// Assignment is round-robin by registration order, so a batch always lands on
// the same workers in the same order. There is no work stealing: a slow
// statement delays only the statements queued behind it on the same worker.
//
// # Errors
//
// The first rejected statement is reported as a *DDLExecutionError carrying
// the statement text and the warehouse error. Other workers are not cancelled;
// the statements they already submitted are independent and are awaited
// before Run returns.
//
// # Usage Example
//
//	exec := executor.New(executor.Config{Session: session, Workers: 4})
//	exec.Register("CREATE SCHEMA PROD_STAGING.RAW CLONE PROD.RAW")
//	exec.Register("CREATE SCHEMA PROD_STAGING.MARTS CLONE PROD.MARTS")
//
//	if err := exec.Run(ctx); err != nil {
//		return err
//	}
package executor
