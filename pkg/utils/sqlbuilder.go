package utils

import (
	"strings"
)

// SQLBuilder provides a fluent interface for building the warehouse DDL and
// metadata statements emitted by the deployment engine. Identifiers are always
// written unquoted, exactly as validated by NewIdentifier.
//
// Example usage:
//
//	sql := NewSQLBuilder().
//		Create("SCHEMA").
//		Qualified(green, schema).
//		Clone(blue, schema).
//		String()
//	// Output: CREATE SCHEMA PROD_STAGING.RAW CLONE PROD.RAW
type SQLBuilder struct {
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder instance.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		parts: make([]string, 0, 10),
	}
}

// Create adds a CREATE clause with the specified object type.
//
// Example:
//
//	builder.Create("DATABASE")  // CREATE DATABASE
//	builder.Create("SCHEMA")    // CREATE SCHEMA
func (b *SQLBuilder) Create(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "CREATE", objectType)
	return b
}

// Drop adds a DROP clause with the specified object type.
//
// Example:
//
//	builder.Drop("DATABASE")  // DROP DATABASE
func (b *SQLBuilder) Drop(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "DROP", objectType)
	return b
}

// Alter adds an ALTER clause with the specified object type.
//
// Example:
//
//	builder.Alter("DATABASE")  // ALTER DATABASE
func (b *SQLBuilder) Alter(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ALTER", objectType)
	return b
}

// Show adds a SHOW clause for the specified object kind.
//
// Example:
//
//	builder.Show("DATABASES")  // SHOW DATABASES
//	builder.Show("GRANTS")     // SHOW GRANTS
func (b *SQLBuilder) Show(kind string) *SQLBuilder {
	b.parts = append(b.parts, "SHOW", kind)
	return b
}

// Grant adds a GRANT clause for the given privilege. Multi-word privileges
// such as "CREATE TABLE" are written as-is.
func (b *SQLBuilder) Grant(privilege string) *SQLBuilder {
	b.parts = append(b.parts, "GRANT", privilege)
	return b
}

// IfExists adds an IF EXISTS clause. This should be called after DROP operations.
//
// Example:
//
//	builder.Drop("DATABASE").IfExists()  // DROP DATABASE IF EXISTS
func (b *SQLBuilder) IfExists() *SQLBuilder {
	b.parts = append(b.parts, "IF", "EXISTS")
	return b
}

// Name adds a single identifier.
func (b *SQLBuilder) Name(name Identifier) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, name.String())
	}
	return b
}

// Qualified adds a dotted, fully qualified name.
//
// Example:
//
//	builder.Qualified("PROD", "RAW")  // PROD.RAW
func (b *SQLBuilder) Qualified(parts ...Identifier) *SQLBuilder {
	if len(parts) > 0 {
		b.parts = append(b.parts, Qualify(parts...))
	}
	return b
}

// Clone adds a CLONE clause referencing the qualified source object.
//
// Example:
//
//	builder.Clone("PROD", "RAW")  // CLONE PROD.RAW
func (b *SQLBuilder) Clone(source ...Identifier) *SQLBuilder {
	b.parts = append(b.parts, "CLONE", Qualify(source...))
	return b
}

// SwapWith adds a SWAP WITH clause.
//
// Example:
//
//	builder.Alter("DATABASE").Name("PROD").SwapWith("PROD_STAGING")
//	// ALTER DATABASE PROD SWAP WITH PROD_STAGING
func (b *SQLBuilder) SwapWith(name Identifier) *SQLBuilder {
	b.parts = append(b.parts, "SWAP", "WITH", name.String())
	return b
}

// On adds an ON clause naming the kind of object, e.g. ON DATABASE or ON SCHEMA.
func (b *SQLBuilder) On(kind string) *SQLBuilder {
	b.parts = append(b.parts, "ON", kind)
	return b
}

// ToRole adds a TO ROLE clause.
func (b *SQLBuilder) ToRole(role Identifier) *SQLBuilder {
	b.parts = append(b.parts, "TO", "ROLE", role.String())
	return b
}

// Like adds a LIKE clause with a single-quoted pattern.
//
// Example:
//
//	builder.Show("DATABASES").Like("PROD")  // SHOW DATABASES LIKE 'PROD'
func (b *SQLBuilder) Like(pattern string) *SQLBuilder {
	b.parts = append(b.parts, "LIKE", "'"+strings.ReplaceAll(pattern, "'", "''")+"'")
	return b
}

// In adds an IN clause naming the container kind, e.g. IN DATABASE.
func (b *SQLBuilder) In(kind string) *SQLBuilder {
	b.parts = append(b.parts, "IN", kind)
	return b
}

// String builds and returns the final SQL statement. No terminating semicolon
// is written since the driver submits one statement per call.
func (b *SQLBuilder) String() string {
	return strings.Join(b.parts, " ")
}
