// Package snowflake implements the warehouse driver contract on top of
// database/sql and github.com/snowflakedb/gosnowflake.
//
// Credentials follow a per-role prefix convention: for a production database
// named PROD the session is opened from PROD_ACCOUNT, PROD_USER,
// PROD_PASSWORD, PROD_WAREHOUSE, PROD_DATABASE, PROD_ROLE and PROD_SCHEMA.
// Every session carries a QUERY_TAG of the form
//
//	{prefix}:{blue}->{green}:{run_id}
//
// so that deployment statements can be found in the query history.
//
// A Client cursor pins one pooled connection and submits statements with
// gosnowflake's asynchronous mode; Pending.Wait blocks on the result until the
// warehouse reports completion. CREATE statements colliding with an existing
// object are reported as warehouse.ErrAlreadyExists.
package snowflake
