package utils

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// identifierPattern is the character class accepted for unquoted warehouse
// identifiers. Quoted identifiers are not supported.
var identifierPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_$]*$`)

// Identifier is a validated, upper-cased, unquoted warehouse identifier.
//
// Identifiers are interpolated into DDL verbatim, so every name that reaches a
// statement must pass through NewIdentifier first.
//
// Examples:
//   - "prod" -> PROD
//   - "prod_staging" -> PROD_STAGING
//   - "raw$v2" -> RAW$V2
//   - "my-db" -> error
//   - "" -> error
type Identifier string

// NewIdentifier validates name and returns it as an upper-cased Identifier.
// Surrounding whitespace is ignored.
func NewIdentifier(name string) (Identifier, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return "", errors.New("identifier must not be empty")
	}

	if !identifierPattern.MatchString(upper) {
		return "", errors.Errorf("invalid identifier %q", name)
	}

	return Identifier(upper), nil
}

// ExactIdentifier validates a name reported by the warehouse. Unlike
// NewIdentifier it refuses to fold case: a lower-case name returned by a
// metadata query belongs to a quoted object, and upper-casing it would address
// a different object.
func ExactIdentifier(name string) (Identifier, error) {
	if !identifierPattern.MatchString(name) {
		return "", errors.Errorf("unsupported identifier %q (quoted identifiers cannot be cloned)", name)
	}

	return Identifier(name), nil
}

// MustIdentifier is like NewIdentifier but panics on invalid input. It is
// intended for constants and tests.
func MustIdentifier(name string) Identifier {
	id, err := NewIdentifier(name)
	if err != nil {
		panic(err)
	}

	return id
}

// String returns the identifier text.
func (i Identifier) String() string {
	return string(i)
}

// Suffixed returns "{i}_{suffix}" as a new validated identifier.
//
// Examples:
//   - (PROD, "staging") -> PROD_STAGING
//   - (PROD, "") -> error
func (i Identifier) Suffixed(suffix string) (Identifier, error) {
	if strings.TrimSpace(suffix) == "" {
		return "", errors.New("suffix must not be empty")
	}

	return NewIdentifier(string(i) + "_" + strings.TrimSpace(suffix))
}

// Qualify joins identifiers into a dotted, fully qualified object name.
//
// Examples:
//   - (PROD) -> PROD
//   - (PROD, RAW) -> PROD.RAW
func Qualify(parts ...Identifier) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = string(p)
	}

	return strings.Join(names, ".")
}
