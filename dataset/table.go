package dataset

import "golang.org/x/net/context"

// Field describes one column of a Table.
type Field struct {
	Name string
	Type string
}

// Cursor iterates the rows of a Select. Close must be called on every path.
type Cursor interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Table is a tabular dataset. Operations are read-only with respect to the
// backing storage.
type Table interface {
	Dataset

	Fields() []Field

	// Select returns a cursor over rows matching the where clause, which
	// may be empty. Fails with BackendUnavailableError when the backing
	// store cannot be reached.
	Select(ctx context.Context, where string, args ...interface{}) (Cursor, error)

	Close() error
}
