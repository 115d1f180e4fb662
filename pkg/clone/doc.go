// Package clone copies the structure and access control of one database onto
// another using zero-copy schema clones.
//
// CloneAllSchemas runs two phases. The first clones every schema returned by
// warehouse.Operations.ListSchemas; the second re-issues the grants found on
// each blue schema against its green clone. CloneAllGrants runs a single
// phase copying the database-level grants. Every phase gets its own
// executor.Executor and reports its elapsed time at INFO.
//
// Grants made to anything other than a role (shares, database roles) cannot
// be expressed as GRANT ... TO ROLE and are skipped.
package clone
