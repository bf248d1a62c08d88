// Package driver defines the contract between the connection pool and a
// database implementation.
package driver

import (
	"context"
	"fmt"
)

// Driver opens connections to one kind of database. Implementations are
// stateless; all per-connection state lives on the Conn they return.
type Driver interface {
	// Name identifies the driver ("postgres", ...).
	Name() string

	// Open establishes a connection described by the given URL. The context
	// carries the caller's deadline; Open must not outlive it.
	Open(ctx context.Context, url string) (Conn, error)
}

// Conn is a single live database connection. A Conn is driven by exactly one
// goroutine at a time; the pool guarantees exclusivity while leased.
type Conn interface {
	// Ping checks that the connection is still alive.
	Ping(ctx context.Context) error

	// Close terminates the connection. It is best-effort and idempotent;
	// closing an already closed connection returns nil.
	Close(ctx context.Context) error

	// Send executes raw SQL with no parameters and no result rows.
	Send(ctx context.Context, sql string) error

	// Execute runs a statement with bound arguments and returns the number
	// of affected rows.
	Execute(ctx context.Context, sql string, args Arguments) (uint64, error)

	// Fetch runs a query and returns a cursor over its result rows. The
	// cursor may fail mid-stream; callers must check Err after Next returns
	// false and must Close the cursor.
	Fetch(ctx context.Context, sql string, args Arguments) (Rows, error)

	// FetchOptional runs a query expected to produce zero or one row.
	// A nil Row with nil error means zero rows.
	FetchOptional(ctx context.Context, sql string, args Arguments) (Row, error)

	// Describe reports the parameter and column schema of a statement
	// without executing it.
	Describe(ctx context.Context, sql string) (*Describe, error)

	// Begin, Commit and Rollback drive transaction boundaries.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Arguments is a driver-specific buffer of bound statement parameters.
type Arguments interface {
	Len() int
}

// Rows is a lazy cursor over a result set.
type Rows interface {
	// Next advances to the next row, returning false at the end of the set
	// or on error.
	Next(ctx context.Context) bool

	// Row returns the current row. Only valid after Next returned true.
	Row() Row

	// Err returns the error that terminated iteration, if any.
	Err() error

	Close() error
}

// Row is one decoded result row.
type Row interface {
	// Len returns the number of columns.
	Len() int

	// Get returns the raw value of column i and whether it was non-null.
	Get(i int) ([]byte, bool)

	// GetNamed is Get by column name.
	GetNamed(name string) ([]byte, bool)
}

// TypeID identifies a database column or parameter type.
type TypeID interface {
	fmt.Stringer

	// Equal reports whether two identifiers name the same type.
	Equal(other TypeID) bool
}

// Column describes one result column of a statement.
type Column struct {
	// Name is empty for unnamed expressions.
	Name string

	// TableID is the identifier of the originating table, zero if the
	// column is not a direct table reference.
	TableID uint32

	Type TypeID
}

// Describe is the schema of a prepared statement.
type Describe struct {
	// Params are the types of the statement's bind parameters. A nil entry
	// means the type could not be determined.
	Params []TypeID

	Columns []Column
}
