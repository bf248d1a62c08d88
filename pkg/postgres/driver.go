// Package postgres implements the driver contract for PostgreSQL over its
// native wire protocol.
package postgres

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// DefaultPort is the standard PostgreSQL server port.
const DefaultPort = 5432

// Driver opens PostgreSQL connections. The zero value is ready to use.
type Driver struct {
	// Logger receives connection-level events (server notices). Nil
	// discards them.
	Logger *zap.Logger
}

func (Driver) Name() string {
	return "postgres"
}

// Open dials the server named by the URL and performs the startup and
// authentication handshake.
func (d Driver) Open(ctx context.Context, url string) (driver.Conn, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return open(ctx, url, logger)
}

// TypeID is a PostgreSQL type OID.
type TypeID uint32

const (
	TypeBool    TypeID = 16
	TypeBytea   TypeID = 17
	TypeInt8    TypeID = 20
	TypeInt2    TypeID = 21
	TypeInt4    TypeID = 23
	TypeText    TypeID = 25
	TypeFloat4  TypeID = 700
	TypeFloat8  TypeID = 701
	TypeVarchar TypeID = 1043
)

func (t TypeID) String() string {
	switch t {
	case TypeBool:
		return "BOOL"
	case TypeBytea:
		return "BYTEA"
	case TypeInt2:
		return "INT2"
	case TypeInt4:
		return "INT4"
	case TypeInt8:
		return "INT8"
	case TypeText:
		return "TEXT"
	case TypeFloat4:
		return "FLOAT4"
	case TypeFloat8:
		return "FLOAT8"
	case TypeVarchar:
		return "VARCHAR"
	}
	return strconv.FormatUint(uint64(t), 10)
}

func (t TypeID) Equal(other driver.TypeID) bool {
	o, ok := other.(TypeID)
	return ok && o == t
}

// binaryCapable reports whether the package can decode the binary wire
// format of the given type. Results for other types are requested as text.
func (t TypeID) binaryCapable() bool {
	switch t {
	case TypeBool, TypeBytea, TypeInt2, TypeInt4, TypeInt8, TypeFloat4, TypeFloat8:
		return true
	}
	return false
}
