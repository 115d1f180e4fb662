package snowflake

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/utils"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	sf "github.com/snowflakedb/gosnowflake"
)

// Credentials are the connection settings for one logical warehouse role.
type Credentials struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Role      string
	Schema    string
}

// LoadCredentials reads {PREFIX}_ACCOUNT, {PREFIX}_USER, {PREFIX}_PASSWORD,
// {PREFIX}_WAREHOUSE, {PREFIX}_DATABASE, {PREFIX}_ROLE and {PREFIX}_SCHEMA
// using lookup, which defaults to os.LookupEnv. ACCOUNT and USER are required;
// their absence is reported as an error wrapping
// warehouse.ErrMissingCredentials.
//
// Example:
//
//	// PROD_ACCOUNT=xy12345.us-east-1 PROD_USER=deployer ...
//	creds, err := snowflake.LoadCredentials("PROD", nil)
func LoadCredentials(prefix utils.Identifier, lookup func(string) (string, bool)) (Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(name string) string {
		v, _ := lookup(prefix.String() + "_" + name)
		return strings.TrimSpace(v)
	}

	creds := Credentials{
		Account:   get("ACCOUNT"),
		User:      get("USER"),
		Password:  get("PASSWORD"),
		Warehouse: get("WAREHOUSE"),
		Database:  get("DATABASE"),
		Role:      get("ROLE"),
		Schema:    get("SCHEMA"),
	}

	var missing []string
	if creds.Account == "" {
		missing = append(missing, prefix.String()+"_ACCOUNT")
	}
	if creds.User == "" {
		missing = append(missing, prefix.String()+"_USER")
	}

	if len(missing) > 0 {
		return creds, errors.Wrapf(warehouse.ErrMissingCredentials, "%s not set", strings.Join(missing, ", "))
	}

	return creds, nil
}

// Config converts the credentials into a driver configuration. A non-empty
// queryTag is set as the QUERY_TAG session parameter.
func (c Credentials) Config(queryTag string) *sf.Config {
	cfg := &sf.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Role:      c.Role,
		Schema:    c.Schema,
		Params:    make(map[string]*string),
	}

	if queryTag != "" {
		tag := queryTag
		cfg.Params["query_tag"] = &tag
	}

	return cfg
}
