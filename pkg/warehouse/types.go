package warehouse

import (
	"maps"
	"slices"
	"strings"

	"github.com/pseudomuto/bluegreen/pkg/utils"
)

type (
	// Schema is a schema discovered in a database.
	Schema struct {
		Database  utils.Identifier
		Name      utils.Identifier
		CreatedOn string
	}

	// GrantRecord is a row returned by SHOW GRANTS ON ...
	GrantRecord struct {
		// Privilege such as USAGE, OWNERSHIP or CREATE TABLE
		Privilege string

		// GrantedOn is the kind of object, e.g. DATABASE or SCHEMA
		GrantedOn string

		// Name is the fully qualified object identifier as reported
		Name string

		// GrantedTo is the kind of grantee, usually ROLE
		GrantedTo string

		// Grantee is the name of the grantee
		Grantee string
	}
)

// excludedSchemas are system or shared schemas which are never cloned and
// never have their grants copied.
var excludedSchemas = map[string]struct{}{
	"INFORMATION_SCHEMA": {},
	"ACCOUNT_USAGE":      {},
	"SECURITY":           {},
	"SNOWFLAKE":          {},
	"UTILS":              {},
	"PUBLIC":             {},
}

// IsExcludedSchema reports whether name belongs to the excluded schema set.
// The comparison is made on the upper-cased name.
func IsExcludedSchema(name string) bool {
	_, ok := excludedSchemas[strings.ToUpper(name)]
	return ok
}

// ExcludedSchemas returns the excluded schema names in sorted order.
func ExcludedSchemas() []string {
	return slices.Sorted(maps.Keys(excludedSchemas))
}

// ToRole reports whether the grant was made to a role, as opposed to a share
// or a database role.
func (g GrantRecord) ToRole() bool {
	return g.GrantedTo == "" || strings.EqualFold(g.GrantedTo, "ROLE")
}
