// Package warehousetest provides an in-memory warehouse that interprets the
// statements emitted by the deployment engine. It implements
// warehouse.Session and is safe for concurrent use.
package warehousetest

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/parser"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
)

// epoch is the creation time of the first object; every later object is one
// second younger so creation times are unique and deterministic.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type (
	// Warehouse is an in-memory warehouse.
	Warehouse struct {
		// Latency is added to every asynchronous submission.
		Latency time.Duration

		mu         sync.Mutex
		databases  map[string]*Database
		statements []string
		failures   map[string]error
		ticks      int
		closed     bool
		cursors    int

		inFlight    atomic.Int32
		maxInFlight atomic.Int32
	}

	// Database is a database held by the fake warehouse.
	Database struct {
		Name      string
		CreatedOn time.Time
		Schemas   map[string]*Schema
		Grants    []warehouse.GrantRecord
	}

	// Schema is a schema held by the fake warehouse.
	Schema struct {
		Name      string
		CreatedOn time.Time
		Grants    []warehouse.GrantRecord
	}
)

// New creates an empty warehouse.
func New() *Warehouse {
	return &Warehouse{
		databases: make(map[string]*Database),
		failures:  make(map[string]error),
	}
}

// AddDatabase creates a database holding INFORMATION_SCHEMA, PUBLIC and the
// given schemas.
func (w *Warehouse) AddDatabase(name string, schemas ...string) *Database {
	w.mu.Lock()
	defer w.mu.Unlock()

	db := w.createDatabase(name)
	for _, s := range schemas {
		db.Schemas[s] = &Schema{Name: s, CreatedOn: w.tick()}
	}

	return db
}

// GrantOnDatabase records a grant on the database to role.
func (w *Warehouse) GrantOnDatabase(db, privilege, role string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := w.databases[db]
	d.Grants = appendGrant(d.Grants, warehouse.GrantRecord{
		Privilege: privilege,
		GrantedOn: "DATABASE",
		Name:      db,
		GrantedTo: "ROLE",
		Grantee:   role,
	})
}

// GrantOnSchema records a grant on db.schema to role.
func (w *Warehouse) GrantOnSchema(db, schema, privilege, role string) {
	w.GrantOnSchemaTo(db, schema, privilege, "ROLE", role)
}

// GrantOnSchemaTo records a grant on db.schema to a grantee of the given kind,
// e.g. SHARE.
func (w *Warehouse) GrantOnSchemaTo(db, schema, privilege, grantedTo, grantee string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.databases[db].Schemas[schema]
	s.Grants = appendGrant(s.Grants, warehouse.GrantRecord{
		Privilege: privilege,
		GrantedOn: "SCHEMA",
		Name:      db + "." + schema,
		GrantedTo: grantedTo,
		Grantee:   grantee,
	})
}

// Drop removes a database outside of any session, as another client would.
func (w *Warehouse) Drop(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.databases, name)
}

// Exists reports whether the database exists.
func (w *Warehouse) Exists(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.databases[name]
	return ok
}

// Database returns a snapshot of the named database, or nil.
func (w *Warehouse) Database(name string) *Database {
	w.mu.Lock()
	defer w.mu.Unlock()

	db, ok := w.databases[name]
	if !ok {
		return nil
	}

	cp := &Database{
		Name:      db.Name,
		CreatedOn: db.CreatedOn,
		Schemas:   make(map[string]*Schema, len(db.Schemas)),
		Grants:    append([]warehouse.GrantRecord(nil), db.Grants...),
	}
	for k, s := range db.Schemas {
		cp.Schemas[k] = &Schema{
			Name:      s.Name,
			CreatedOn: s.CreatedOn,
			Grants:    append([]warehouse.GrantRecord(nil), s.Grants...),
		}
	}

	return cp
}

// SchemaNames returns the sorted names of the database's schemas.
func (d *Database) SchemaNames() []string {
	names := make([]string, 0, len(d.Schemas))
	for name := range d.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// FailOn makes every statement starting with prefix fail with err.
func (w *Warehouse) FailOn(prefix string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failures[prefix] = err
}

// Statements returns every statement received, in arrival order.
func (w *Warehouse) Statements() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]string(nil), w.statements...)
}

// StatementsOfKind returns the received statements of the given kind (see
// parser.Statement.Kind), sorted.
func (w *Warehouse) StatementsOfKind(kind string) []string {
	var out []string
	for _, s := range w.Statements() {
		stmt, err := parser.ParseStatement(s)
		if err == nil && stmt.Kind() == kind {
			out = append(out, s)
		}
	}
	sort.Strings(out)

	return out
}

// MaxInFlight returns the highest number of concurrent asynchronous
// submissions observed.
func (w *Warehouse) MaxInFlight() int {
	return int(w.maxInFlight.Load())
}

// CursorsOpened returns the number of cursors derived from the session.
func (w *Warehouse) CursorsOpened() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cursors
}

// Closed reports whether the session was closed.
func (w *Warehouse) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

// Exec implements warehouse.Session.
func (w *Warehouse) Exec(_ context.Context, query string) error {
	_, err := w.apply(query)
	return err
}

// Query implements warehouse.Session.
func (w *Warehouse) Query(_ context.Context, query string) (warehouse.Rows, error) {
	return w.apply(query)
}

// Cursor implements warehouse.Session.
func (w *Warehouse) Cursor(context.Context) (warehouse.Cursor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cursors++
	return &cursor{w: w}, nil
}

// Close implements warehouse.Session.
func (w *Warehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	return nil
}

type (
	cursor struct {
		w *Warehouse
	}

	pending struct {
		err error
	}
)

func (c *cursor) ExecAsync(_ context.Context, query string) (warehouse.Pending, error) {
	n := c.w.inFlight.Add(1)
	defer c.w.inFlight.Add(-1)

	for {
		seen := c.w.maxInFlight.Load()
		if n <= seen || c.w.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	if c.w.Latency > 0 {
		time.Sleep(c.w.Latency)
	}

	_, err := c.w.apply(query)
	return &pending{err: err}, nil
}

func (c *cursor) Close() error { return nil }

func (p *pending) Wait() error { return p.err }

func (w *Warehouse) apply(query string) (*Rows, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.statements = append(w.statements, query)
	for prefix, err := range w.failures {
		if strings.HasPrefix(query, prefix) {
			return nil, err
		}
	}

	stmt, err := parser.ParseStatement(query)
	if err != nil {
		return nil, errors.Wrap(err, "SQL compilation error")
	}

	switch {
	case stmt.ShowDatabases != nil:
		return w.showDatabases(stmt.ShowDatabases.Pattern()), nil
	case stmt.ShowSchemas != nil:
		return w.showSchemas(stmt.ShowSchemas.Database)
	case stmt.ShowGrants != nil:
		return w.showGrants(stmt.ShowGrants)
	case stmt.CreateDatabase != nil:
		if _, ok := w.databases[stmt.CreateDatabase.Name]; ok {
			return nil, errors.Wrapf(warehouse.ErrAlreadyExists, "Object '%s' already exists", stmt.CreateDatabase.Name)
		}
		w.createDatabase(stmt.CreateDatabase.Name)
		return emptyRows(), nil
	case stmt.CreateSchema != nil:
		return emptyRows(), w.cloneSchema(stmt.CreateSchema)
	case stmt.DropDatabase != nil:
		if _, ok := w.databases[stmt.DropDatabase.Name]; !ok && !stmt.DropDatabase.IfExists {
			return nil, errors.Errorf("Database '%s' does not exist", stmt.DropDatabase.Name)
		}
		delete(w.databases, stmt.DropDatabase.Name)
		return emptyRows(), nil
	case stmt.AlterDatabase != nil:
		return emptyRows(), w.swap(stmt.AlterDatabase.Name, stmt.AlterDatabase.SwapWith)
	case stmt.Grant != nil:
		return emptyRows(), w.grant(stmt.Grant)
	}

	return nil, errors.Errorf("unsupported statement %q", query)
}

func (w *Warehouse) tick() time.Time {
	w.ticks++
	return epoch.Add(time.Duration(w.ticks) * time.Second)
}

func (w *Warehouse) createDatabase(name string) *Database {
	created := w.tick()
	db := &Database{
		Name:      name,
		CreatedOn: created,
		Schemas: map[string]*Schema{
			"INFORMATION_SCHEMA": {Name: "INFORMATION_SCHEMA", CreatedOn: created},
			"PUBLIC":             {Name: "PUBLIC", CreatedOn: created},
		},
	}
	w.databases[name] = db

	return db
}

func (w *Warehouse) showDatabases(pattern string) *Rows {
	var like *regexp.Regexp
	if pattern != "" {
		like = likePattern(pattern)
	}

	rows := &Rows{columns: []string{"created_on", "name", "is_default", "owner"}}
	for _, name := range w.sortedDatabases() {
		if like != nil && !like.MatchString(name) {
			continue
		}
		db := w.databases[name]
		rows.values = append(rows.values, []string{db.CreatedOn.Format(time.RFC3339), db.Name, "N", "SYSADMIN"})
	}

	return rows
}

func (w *Warehouse) showSchemas(database string) (*Rows, error) {
	db, ok := w.databases[database]
	if !ok {
		return nil, errors.Errorf("Database '%s' does not exist or not authorized", database)
	}

	rows := &Rows{columns: []string{"created_on", "name", "is_default", "is_current", "database_name", "owner"}}
	for _, name := range db.SchemaNames() {
		s := db.Schemas[name]
		rows.values = append(rows.values, []string{s.CreatedOn.Format(time.RFC3339), s.Name, "N", "N", db.Name, "SYSADMIN"})
	}

	return rows, nil
}

func (w *Warehouse) showGrants(stmt *parser.ShowGrantsStmt) (*Rows, error) {
	grants, err := w.grantsOn(stmt.Kind, stmt.Object.Parts)
	if err != nil {
		return nil, err
	}

	rows := &Rows{columns: []string{"created_on", "privilege", "granted_on", "name", "granted_to", "grantee_name", "grant_option", "granted_by"}}
	for _, g := range *grants {
		rows.values = append(rows.values, []string{
			epoch.Format(time.RFC3339), g.Privilege, g.GrantedOn, g.Name, g.GrantedTo, g.Grantee, "false", "SYSADMIN",
		})
	}

	return rows, nil
}

func (w *Warehouse) grantsOn(kind string, parts []string) (*[]warehouse.GrantRecord, error) {
	switch {
	case strings.EqualFold(kind, "DATABASE") && len(parts) == 1:
		db, ok := w.databases[parts[0]]
		if !ok {
			return nil, errors.Errorf("Database '%s' does not exist or not authorized", parts[0])
		}
		return &db.Grants, nil
	case strings.EqualFold(kind, "SCHEMA") && len(parts) == 2:
		db, ok := w.databases[parts[0]]
		if !ok {
			return nil, errors.Errorf("Database '%s' does not exist or not authorized", parts[0])
		}
		s, ok := db.Schemas[parts[1]]
		if !ok {
			return nil, errors.Errorf("Schema '%s' does not exist or not authorized", strings.Join(parts, "."))
		}
		return &s.Grants, nil
	}

	return nil, errors.Errorf("unsupported object %s %s", kind, strings.Join(parts, "."))
}

func (w *Warehouse) cloneSchema(stmt *parser.CreateSchemaStmt) error {
	src, dst := stmt.Source.Parts, stmt.Target.Parts
	if len(src) != 2 || len(dst) != 2 {
		return errors.New("schema names must be qualified")
	}

	srcDB, ok := w.databases[src[0]]
	if !ok {
		return errors.Errorf("Database '%s' does not exist or not authorized", src[0])
	}

	if _, ok := srcDB.Schemas[src[1]]; !ok {
		return errors.Errorf("Schema '%s' does not exist or not authorized", stmt.Source)
	}

	dstDB, ok := w.databases[dst[0]]
	if !ok {
		return errors.Errorf("Database '%s' does not exist or not authorized", dst[0])
	}

	if _, ok := dstDB.Schemas[dst[1]]; ok {
		return errors.Wrapf(warehouse.ErrAlreadyExists, "Object '%s' already exists", stmt.Target)
	}

	// Clones do not carry grants on the schema itself.
	dstDB.Schemas[dst[1]] = &Schema{Name: dst[1], CreatedOn: w.tick()}
	return nil
}

func (w *Warehouse) swap(a, b string) error {
	dbA, ok := w.databases[a]
	if !ok {
		return errors.Errorf("Database '%s' does not exist or not authorized", a)
	}

	dbB, ok := w.databases[b]
	if !ok {
		return errors.Errorf("Database '%s' does not exist or not authorized", b)
	}

	dbA.Name, dbB.Name = b, a
	w.databases[a], w.databases[b] = dbB, dbA
	return nil
}

func (w *Warehouse) grant(stmt *parser.GrantStmt) error {
	grants, err := w.grantsOn(stmt.Kind, stmt.Object.Parts)
	if err != nil {
		return err
	}

	*grants = appendGrant(*grants, warehouse.GrantRecord{
		Privilege: stmt.PrivilegeName(),
		GrantedOn: strings.ToUpper(stmt.Kind),
		Name:      stmt.Object.String(),
		GrantedTo: "ROLE",
		Grantee:   stmt.Role,
	})
	return nil
}

func (w *Warehouse) sortedDatabases() []string {
	names := make([]string, 0, len(w.databases))
	for name := range w.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// appendGrant adds g unless an identical grant is already present; repeated
// grants are no-ops on the warehouse.
func appendGrant(grants []warehouse.GrantRecord, g warehouse.GrantRecord) []warehouse.GrantRecord {
	for _, existing := range grants {
		if existing == g {
			return grants
		}
	}

	return append(grants, g)
}

// likePattern converts a SQL LIKE pattern into a case-insensitive regexp.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	return regexp.MustCompile(b.String())
}

// Rows is an in-memory result set implementing warehouse.Rows.
type Rows struct {
	columns []string
	values  [][]string
	pos     int
}

// NewRows creates a result set, mostly useful for tests of row handling.
func NewRows(columns []string, values ...[]string) *Rows {
	return &Rows{columns: columns, values: values}
}

func emptyRows() *Rows { return &Rows{} }

func (r *Rows) Columns() ([]string, error) { return r.columns, nil }

func (r *Rows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	row := r.values[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}

	for i, d := range dest {
		switch p := d.(type) {
		case *sql.NullString:
			*p = sql.NullString{String: row[i], Valid: true}
		case *string:
			*p = row[i]
		case *any:
			*p = row[i]
		default:
			return fmt.Errorf("unsupported Scan destination %T", d)
		}
	}

	return nil
}

func (r *Rows) Err() error { return nil }

func (r *Rows) Close() error { return nil }
