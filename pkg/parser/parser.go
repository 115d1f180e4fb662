package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var (
	// warehouseLexer defines the lexer for the warehouse statement subset
	warehouseLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `--[^\r\n]*`},
		{Name: "String", Pattern: `'([^']|'')*'`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
		{Name: "Punct", Pattern: `[.;]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	// parser is the participle parser instance for warehouse statements
	parser = participle.MustBuild[SQL](
		participle.Lexer(warehouseLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(4),
	)
)

type (
	// SQL is a sequence of statements, optionally separated by semicolons.
	SQL struct {
		Statements []*Statement `parser:"(@@ ';'?)*"`
	}

	// Statement is one of the statements issued by the deployment engine.
	Statement struct {
		ShowDatabases  *ShowDatabasesStmt  `parser:"@@"`
		ShowSchemas    *ShowSchemasStmt    `parser:"| @@"`
		ShowGrants     *ShowGrantsStmt     `parser:"| @@"`
		CreateDatabase *CreateDatabaseStmt `parser:"| @@"`
		CreateSchema   *CreateSchemaStmt   `parser:"| @@"`
		DropDatabase   *DropDatabaseStmt   `parser:"| @@"`
		AlterDatabase  *AlterDatabaseStmt  `parser:"| @@"`
		Grant          *GrantStmt          `parser:"| @@"`
	}
)

// ParseString parses warehouse statements from a string.
//
// Example usage:
//
//	sql, err := parser.ParseString("CREATE SCHEMA PROD_STAGING.RAW CLONE PROD.RAW")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	clone := sql.Statements[0].CreateSchema
//	fmt.Println(clone.Target, "<-", clone.Source) // PROD_STAGING.RAW <- PROD.RAW
func ParseString(sql string) (*SQL, error) {
	sqlResult, err := parser.ParseString("", sql)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse SQL")
	}

	return sqlResult, nil
}

// ParseStatement parses exactly one statement.
func ParseStatement(sql string) (*Statement, error) {
	parsed, err := ParseString(sql)
	if err != nil {
		return nil, err
	}

	if len(parsed.Statements) != 1 {
		return nil, errors.Errorf("expected exactly one statement, found %d", len(parsed.Statements))
	}

	return parsed.Statements[0], nil
}

// Validate reports whether sql is a single statement of the supported subset.
func Validate(sql string) error {
	_, err := ParseStatement(sql)
	return err
}

// Kind returns a short upper-case description of the statement, e.g.
// "CREATE SCHEMA" or "GRANT".
func (s *Statement) Kind() string {
	switch {
	case s.ShowDatabases != nil:
		return "SHOW DATABASES"
	case s.ShowSchemas != nil:
		return "SHOW SCHEMAS"
	case s.ShowGrants != nil:
		return "SHOW GRANTS"
	case s.CreateDatabase != nil:
		return "CREATE DATABASE"
	case s.CreateSchema != nil:
		return "CREATE SCHEMA"
	case s.DropDatabase != nil:
		return "DROP DATABASE"
	case s.AlterDatabase != nil:
		return "ALTER DATABASE"
	case s.Grant != nil:
		return "GRANT"
	default:
		return ""
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}

	return strings.ReplaceAll(s, "''", "'")
}
