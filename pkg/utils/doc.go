// Package utils provides helpers shared by the packages that build warehouse
// statements.
//
// # Identifiers (identifier.go)
//
// Every name interpolated into DDL is an Identifier. NewIdentifier validates
// user supplied names against the unquoted identifier character class and
// upper-cases them; ExactIdentifier validates names reported by the warehouse
// without folding case.
//
//	blue, err := utils.NewIdentifier("prod")      // PROD
//	green, err := blue.Suffixed("staging")        // PROD_STAGING
//	name := utils.Qualify(green, "RAW")           // PROD_STAGING.RAW
//
// # SQLBuilder (sqlbuilder.go)
//
// A small fluent builder for the statements the engine emits:
//
//	utils.NewSQLBuilder().Alter("DATABASE").Name(blue).SwapWith(green).String()
//	// ALTER DATABASE PROD SWAP WITH PROD_STAGING
package utils
