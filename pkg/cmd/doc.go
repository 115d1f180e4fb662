// Package cmd provides the CLI commands for the bluegreen tool.
//
// Commands are constructed from fx parameter structs and collected through
// the "commands" value group, following the urfave/cli/v3 pattern of one
// function per *cli.Command.
//
// # Available Commands
//
//   - blue-green: Build into a staging clone of production and swap it in
//
// # Global Options
//
// All commands support global flags:
//   - --dir, -d: Working directory (defaults to current directory)
//   - --config, -c: Project file (defaults to bluegreen.yaml, $BLUEGREEN_CONFIG)
//   - --log-level: debug, info, warn or error
//   - --log-format: text or json
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Exit Codes
//
// The process exit code reflects the class of the error that ended the run:
// 0 success, 2 configuration, 3 precondition, 4 DDL, 5 build, 6 swap and 1
// for anything else.
//
// # Example Usage
//
//	bluegreen blue-green --production-database PROD
//	bluegreen blue-green --production-database PROD --staging-database PROD_NEXT --keep-staging-db-on-success
//	bluegreen --log-format json blue-green --drop-staging-db --drop-staging-db-after 10 --drop-staging-db-on-failure
package cmd
