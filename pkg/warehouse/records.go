package warehouse

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

// Record is one row of a SHOW command keyed by lower-cased column name. SHOW
// output varies in width between warehouse releases, so rows are read by
// column name rather than position.
type Record map[string]string

// Get returns the value of the named column, or "" when absent.
func (r Record) Get(column string) string {
	return r[strings.ToLower(column)]
}

func scanRecords(rows Rows) ([]Record, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read columns")
	}

	var records []Record
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		record := make(Record, len(columns))
		for i, col := range columns {
			record[strings.ToLower(col)] = values[i].String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return records, nil
}
