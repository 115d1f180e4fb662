// Package deploy provides the blue-green deployment controller.
//
// A deployment builds a fresh copy ("green") of a live database ("blue"),
// runs the Transformation Runner against it and atomically swaps the two
// names. The Controller drives an explicit state machine:
//
//	INIT -> PRECHECK -> [DRAIN] -> CREATED -> SCHEMAS_CLONED -> BUILT
//	     -> GRANTS_CLONED -> SWAPPED -> DROPPED -> DONE
//
// Any failed transition ends in FAILED, passing through FAILURE_CLEANUP when
// the transition is one of CREATED, SCHEMAS_CLONED, BUILT or GRANTS_CLONED and
// the plan asks for green to be dropped on failure. PRECHECK and DRAIN never
// touch green. A failed swap is reported as a *SwapFailed and is never
// compensated. A failed post-swap drop is logged and the deployment is DONE.
//
// # Errors
//
// Every error returned in Result.Err carries a class (see Classify), which
// ExitCode maps onto the process exit status:
//
//   - ConfigurationError: invalid plan or missing credentials
//   - PreconditionViolated: green exists, the drain timed out, or green
//     appeared between the check and its creation
//   - executor.DDLExecutionError: a clone or grant was rejected
//   - BuildFailed: the Transformation Runner exited non-zero
//   - SwapFailed: the swap errored
//   - DriverError: anything else from the warehouse
//
// # Usage Example
//
//	plan := deploy.Plan{
//		ProductionDatabase:   "PROD",
//		StagingSuffix:        "STAGING",
//		DropStagingOnFailure: true,
//		Workers:              20,
//		Build:                deploy.BuildOptions{Target: "prod"},
//	}
//
//	result := deploy.New(deploy.Config{Connector: conn, Runner: r}).Run(ctx, plan)
//	if result.Err != nil {
//		log.Printf("failed in %s: %v", result.FailedState, result.Err)
//	}
package deploy
