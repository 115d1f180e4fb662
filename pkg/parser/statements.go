package parser

import "strings"

type (
	// ObjectName is a dotted object name such as PROD or PROD.RAW.
	ObjectName struct {
		Parts []string `parser:"@Ident ('.' @Ident)*"`
	}

	// ShowDatabasesStmt represents SHOW DATABASES statements
	// Syntax: SHOW DATABASES [LIKE 'pattern'];
	ShowDatabasesStmt struct {
		Like *string `parser:"'SHOW' 'DATABASES' ('LIKE' @String)?"`
	}

	// ShowSchemasStmt represents SHOW SCHEMAS statements
	// Syntax: SHOW SCHEMAS IN DATABASE db;
	ShowSchemasStmt struct {
		Database string `parser:"'SHOW' 'SCHEMAS' 'IN' 'DATABASE' @Ident"`
	}

	// ShowGrantsStmt represents SHOW GRANTS ON statements
	// Syntax: SHOW GRANTS ON { DATABASE db | SCHEMA db.schema };
	ShowGrantsStmt struct {
		Kind   string      `parser:"'SHOW' 'GRANTS' 'ON' @Ident"`
		Object *ObjectName `parser:"@@"`
	}

	// CreateDatabaseStmt represents CREATE DATABASE statements
	// Syntax: CREATE DATABASE db;
	CreateDatabaseStmt struct {
		Name string `parser:"'CREATE' 'DATABASE' @Ident"`
	}

	// CreateSchemaStmt represents zero-copy schema clones
	// Syntax: CREATE SCHEMA db.schema CLONE db.schema;
	CreateSchemaStmt struct {
		Target *ObjectName `parser:"'CREATE' 'SCHEMA' @@"`
		Source *ObjectName `parser:"'CLONE' @@"`
	}

	// DropDatabaseStmt represents DROP DATABASE statements
	// Syntax: DROP DATABASE [IF EXISTS] db;
	DropDatabaseStmt struct {
		IfExists bool   `parser:"'DROP' 'DATABASE' @('IF' 'EXISTS')?"`
		Name     string `parser:"@Ident"`
	}

	// AlterDatabaseStmt represents database swaps
	// Syntax: ALTER DATABASE db SWAP WITH other;
	AlterDatabaseStmt struct {
		Name     string `parser:"'ALTER' 'DATABASE' @Ident"`
		SwapWith string `parser:"'SWAP' 'WITH' @Ident"`
	}

	// GrantStmt represents role grants
	// Syntax: GRANT privilege ON kind object TO ROLE role;
	GrantStmt struct {
		Privilege []string    `parser:"'GRANT' (@!'ON')+"`
		Kind      string      `parser:"'ON' @Ident"`
		Object    *ObjectName `parser:"@@"`
		Role      string      `parser:"'TO' 'ROLE' @Ident"`
	}
)

// String returns the dotted name.
func (o *ObjectName) String() string {
	if o == nil {
		return ""
	}

	return strings.Join(o.Parts, ".")
}

// Pattern returns the unquoted LIKE pattern, or "" when none was given.
func (s *ShowDatabasesStmt) Pattern() string {
	if s.Like == nil {
		return ""
	}

	return unquote(*s.Like)
}

// PrivilegeName returns the privilege as written, e.g. "CREATE TABLE".
func (s *GrantStmt) PrivilegeName() string {
	return strings.Join(s.Privilege, " ")
}
