package warehouse

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyExists is wrapped by drivers when a CREATE collides with an
	// existing object.
	ErrAlreadyExists = errors.New("object already exists")

	// ErrMissingCredentials is wrapped by drivers when the session cannot be
	// opened because required connection settings are absent.
	ErrMissingCredentials = errors.New("missing warehouse credentials")
)

type (
	// Rows is the subset of *sql.Rows consumed by warehouse operations.
	Rows interface {
		Columns() ([]string, error)
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}

	// Session is a single warehouse session. Implementations must allow
	// Cursor to be called from multiple goroutines.
	Session interface {
		// Exec runs a statement and waits for it to complete.
		Exec(ctx context.Context, query string) error

		// Query runs a metadata statement and returns its rows.
		Query(ctx context.Context, query string) (Rows, error)

		// Cursor derives a new cursor from the session for use by a single
		// goroutine.
		Cursor(ctx context.Context) (Cursor, error)

		// Close ends the session.
		Close() error
	}

	// Cursor submits statements without waiting for them to complete. The
	// warehouse serializes statements submitted on the same cursor.
	Cursor interface {
		ExecAsync(ctx context.Context, query string) (Pending, error)
		Close() error
	}

	// Pending is a submitted statement.
	Pending interface {
		// Wait blocks until the warehouse acknowledges the statement and
		// returns its error, if any.
		Wait() error
	}
)
