// Package warehouse provides the warehouse operations used by blue-green
// deployments.
//
// Each operation maps onto exactly one statement against a Session. The
// statements are generated with utils.SQLBuilder and validated by the parser
// package before being sent, so nothing reaches the warehouse that the engine
// could not have parsed back.
//
// # Core Components
//
//   - Session, Cursor and Pending: the driver contract. Drivers such as the
//     snowflake package implement it; warehousetest provides an in-memory fake.
//   - Operations: existence checks, create, drop, swap and the SHOW queries.
//   - CloneSchemaStatement and GrantStatement: statement generators whose
//     output is registered with the concurrent executor.
//
// # Excluded Schemas
//
// INFORMATION_SCHEMA, ACCOUNT_USAGE, SECURITY, SNOWFLAKE, UTILS and PUBLIC are
// system or shared schemas. ListSchemas never returns them, so they are never
// cloned and their grants are never copied.
//
// # Usage Example
//
//	ops := warehouse.New(session)
//
//	schemas, err := ops.ListSchemas(ctx, blue)
//	if err != nil {
//		return err
//	}
//
//	for _, s := range schemas {
//		stmt, err := warehouse.CloneSchemaStatement(blue, s.Name, green, s.Name)
//		if err != nil {
//			return err
//		}
//		exec.Register(stmt)
//	}
package warehouse
