// Package parser provides a participle-based parser for the small set of
// warehouse statements issued during a blue-green deployment.
//
// Supported statements:
//
//	SHOW DATABASES [LIKE 'pattern']
//	SHOW SCHEMAS IN DATABASE db
//	SHOW GRANTS ON { DATABASE db | SCHEMA db.schema }
//	CREATE DATABASE db
//	CREATE SCHEMA db.schema CLONE db.schema
//	DROP DATABASE [IF EXISTS] db
//	ALTER DATABASE db SWAP WITH other
//	GRANT privilege ON kind object TO ROLE role
//
// Warehouse operations validate every generated statement with Validate
// before it is sent, and the in-memory warehouse used by tests interprets the
// parsed form to simulate the effect of each statement.
package parser
