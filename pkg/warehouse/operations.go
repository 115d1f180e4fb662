package warehouse

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/parser"
	"github.com/pseudomuto/bluegreen/pkg/utils"
)

// Operations maps each logical warehouse operation onto exactly one
// statement. Every statement is validated by the parser before it is sent.
//
// Example usage:
//
//	ops := warehouse.New(session)
//
//	exists, err := ops.DatabaseExists(ctx, green)
//	if err != nil {
//		return err
//	}
//
//	if !exists {
//		err = ops.CreateDatabase(ctx, green)
//	}
type Operations struct {
	session Session
}

// New creates Operations over the given session.
func New(session Session) *Operations {
	return &Operations{session: session}
}

// Session returns the session the operations run against.
func (o *Operations) Session() Session {
	return o.session
}

// DatabaseExists reports whether a database named exactly name exists.
func (o *Operations) DatabaseExists(ctx context.Context, name utils.Identifier) (bool, error) {
	query := utils.NewSQLBuilder().Show("DATABASES").Like(name.String()).String()

	records, err := o.query(ctx, query)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check for database %s", name)
	}

	// LIKE is case-insensitive and treats _ as a wildcard, so confirm the match.
	for _, r := range records {
		if r.Get("name") == name.String() {
			return true, nil
		}
	}

	return false, nil
}

// CreateDatabase creates an empty database. A collision with an existing
// database is reported as an error wrapping ErrAlreadyExists.
func (o *Operations) CreateDatabase(ctx context.Context, name utils.Identifier) error {
	query := utils.NewSQLBuilder().Create("DATABASE").Name(name).String()
	return errors.Wrapf(o.exec(ctx, query), "failed to create database %s", name)
}

// DropDatabase drops the database if it exists.
func (o *Operations) DropDatabase(ctx context.Context, name utils.Identifier) error {
	query := utils.NewSQLBuilder().Drop("DATABASE").IfExists().Name(name).String()
	return errors.Wrapf(o.exec(ctx, query), "failed to drop database %s", name)
}

// ListSchemas returns the schemas of db in the order reported by the
// warehouse, with the excluded schemas removed.
func (o *Operations) ListSchemas(ctx context.Context, db utils.Identifier) ([]Schema, error) {
	query := utils.NewSQLBuilder().Show("SCHEMAS").In("DATABASE").Name(db).String()

	records, err := o.query(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list schemas in %s", db)
	}

	var schemas []Schema
	for _, r := range records {
		name := r.Get("name")
		if IsExcludedSchema(name) {
			slog.Debug("Skipping excluded schema", "database", db, "schema", name)
			continue
		}

		id, err := utils.ExactIdentifier(name)
		if err != nil {
			return nil, errors.Wrapf(err, "schema in %s", db)
		}

		schemas = append(schemas, Schema{
			Database:  db,
			Name:      id,
			CreatedOn: r.Get("created_on"),
		})
	}

	return schemas, nil
}

// ListDatabaseGrants returns the grants on database db.
func (o *Operations) ListDatabaseGrants(ctx context.Context, db utils.Identifier) ([]GrantRecord, error) {
	query := utils.NewSQLBuilder().Show("GRANTS").On("DATABASE").Name(db).String()

	grants, err := o.grants(ctx, query)
	return grants, errors.Wrapf(err, "failed to list grants on database %s", db)
}

// ListSchemaGrants returns the grants on schema db.schema.
func (o *Operations) ListSchemaGrants(ctx context.Context, db, schema utils.Identifier) ([]GrantRecord, error) {
	query := utils.NewSQLBuilder().Show("GRANTS").On("SCHEMA").Qualified(db, schema).String()

	grants, err := o.grants(ctx, query)
	return grants, errors.Wrapf(err, "failed to list grants on schema %s", utils.Qualify(db, schema))
}

// SwapDatabases atomically exchanges the names of a and b.
func (o *Operations) SwapDatabases(ctx context.Context, a, b utils.Identifier) error {
	query := utils.NewSQLBuilder().Alter("DATABASE").Name(a).SwapWith(b).String()
	return errors.Wrapf(o.exec(ctx, query), "failed to swap %s with %s", a, b)
}

// CloneSchemaStatement returns the statement cloning srcDB.srcSchema into
// dstDB.dstSchema. Clones are registered with the concurrent executor rather
// than run here.
func CloneSchemaStatement(srcDB, srcSchema, dstDB, dstSchema utils.Identifier) (string, error) {
	query := utils.NewSQLBuilder().
		Create("SCHEMA").
		Qualified(dstDB, dstSchema).
		Clone(srcDB, srcSchema).
		String()

	return query, validate(query)
}

// GrantStatement rewrites a grant read from one object as a statement issuing
// the same privilege on target, e.g. a database or a db.schema pair.
func GrantStatement(grant GrantRecord, target ...utils.Identifier) (string, error) {
	role, err := utils.ExactIdentifier(grant.Grantee)
	if err != nil {
		return "", errors.Wrap(err, "grantee")
	}

	query := utils.NewSQLBuilder().
		Grant(grant.Privilege).
		On(grant.GrantedOn).
		Qualified(target...).
		ToRole(role).
		String()

	return query, validate(query)
}

func (o *Operations) grants(ctx context.Context, query string) ([]GrantRecord, error) {
	records, err := o.query(ctx, query)
	if err != nil {
		return nil, err
	}

	grants := make([]GrantRecord, 0, len(records))
	for _, r := range records {
		grants = append(grants, GrantRecord{
			Privilege: r.Get("privilege"),
			GrantedOn: r.Get("granted_on"),
			Name:      r.Get("name"),
			GrantedTo: r.Get("granted_to"),
			Grantee:   r.Get("grantee_name"),
		})
	}

	return grants, nil
}

func (o *Operations) exec(ctx context.Context, query string) error {
	if err := validate(query); err != nil {
		return err
	}

	slog.Debug("Executing statement", "sql", query)
	return o.session.Exec(ctx, query)
}

func (o *Operations) query(ctx context.Context, query string) ([]Record, error) {
	if err := validate(query); err != nil {
		return nil, err
	}

	slog.Debug("Running query", "sql", query)
	rows, err := o.session.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return scanRecords(rows)
}

// validate ensures the generated statement is valid by parsing it
func validate(query string) error {
	return errors.Wrapf(parser.Validate(query), "generated invalid statement %q", query)
}
