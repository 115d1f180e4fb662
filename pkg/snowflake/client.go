package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/pseudomuto/bluegreen/pkg/warehouse"
	sf "github.com/snowflakedb/gosnowflake"
)

// objectAlreadyExists is the error number reported when a CREATE collides
// with an existing object.
const objectAlreadyExists = 2002

type (
	// Client is a warehouse.Session backed by database/sql and gosnowflake.
	// Metadata statements run on the pool; each cursor pins one pooled
	// connection and submits statements in asynchronous mode.
	Client struct {
		db *sql.DB
	}

	// Options tune the session.
	Options struct {
		// QueryTag is attached to every statement for auditing
		QueryTag string

		// MaxConns caps the pool. Zero leaves it unbounded.
		MaxConns int
	}

	// Connector implements deploy.Connector using credentials from the
	// environment, addressed by the blue database name.
	Connector struct {
		// QueryTag prefixes the tag set on the session
		QueryTag string

		// MaxConns is passed through to Options
		MaxConns int

		// LookupEnv defaults to os.LookupEnv
		LookupEnv func(string) (string, bool)
	}

	cursor struct {
		conn *sql.Conn
	}

	pending struct {
		result sql.Result
	}
)

// Open connects to the warehouse and verifies the connection.
//
// Example:
//
//	creds, err := snowflake.LoadCredentials("PROD", nil)
//	if err != nil {
//		return err
//	}
//
//	client, err := snowflake.Open(ctx, creds, snowflake.Options{QueryTag: "bluegreen"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
func Open(ctx context.Context, creds Credentials, opts Options) (*Client, error) {
	dsn, err := sf.DSN(creds.Config(opts.QueryTag))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build snowflake DSN")
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snowflake connection")
	}

	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect to snowflake account %s", creds.Account)
	}

	slog.Debug("Connected to snowflake", "account", creds.Account, "user", creds.User, "query_tag", opts.QueryTag)
	return &Client{db: db}, nil
}

// Exec implements warehouse.Session.
func (c *Client) Exec(ctx context.Context, query string) error {
	_, err := c.db.ExecContext(ctx, query)
	return translateError(err)
}

// Query implements warehouse.Session.
func (c *Client) Query(ctx context.Context, query string) (warehouse.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}

	return rows, nil
}

// Cursor implements warehouse.Session.
func (c *Client) Cursor(ctx context.Context) (warehouse.Cursor, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection")
	}

	return &cursor{conn: conn}, nil
}

// Close implements warehouse.Session.
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *cursor) ExecAsync(ctx context.Context, query string) (warehouse.Pending, error) {
	result, err := c.conn.ExecContext(sf.WithAsyncMode(ctx), query)
	if err != nil {
		return nil, translateError(err)
	}

	return &pending{result: result}, nil
}

func (c *cursor) Close() error {
	return c.conn.Close()
}

// Wait blocks until the asynchronous statement completes.
func (p *pending) Wait() error {
	_, err := p.result.RowsAffected()
	return translateError(err)
}

// NewConnector creates a Connector tagging sessions with queryTag.
func NewConnector(queryTag string) *Connector {
	return &Connector{QueryTag: queryTag}
}

// Connect implements deploy.Connector.
func (c *Connector) Connect(ctx context.Context, target deploy.Target) (warehouse.Session, error) {
	creds, err := LoadCredentials(target.Blue, c.LookupEnv)
	if err != nil {
		return nil, err
	}

	return Open(ctx, creds, Options{
		QueryTag: QueryTag(c.QueryTag, target),
		MaxConns: c.MaxConns,
	})
}

// QueryTag formats the session query tag, e.g.
// "bluegreen:PROD->PROD_STAGING:6f1c...".
func QueryTag(prefix string, target deploy.Target) string {
	return fmt.Sprintf("%s:%s->%s:%s", prefix, target.Blue, target.Green, target.RunID)
}

// translateError maps driver errors onto the warehouse sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) && sfErr.Number == objectAlreadyExists {
		return errors.Wrap(warehouse.ErrAlreadyExists, sfErr.Error())
	}

	return err
}
