package postgres

import "fmt"

// Wire format codes.
const (
	formatText   int16 = 0
	formatBinary int16 = 1
)

type argument struct {
	oid    TypeID
	format int16
	value  []byte
	null   bool
}

// Arguments is the bind-parameter buffer for PostgreSQL statements.
// Parameters are positional, matching $1, $2, ... in the statement text.
type Arguments struct {
	args []argument
}

// Args builds an argument buffer from Go values. Supported types: nil,
// bool, int, int16, int32, int64, float32, float64, string and []byte.
func Args(values ...any) (*Arguments, error) {
	a := &Arguments{}
	for _, v := range values {
		if err := a.Add(v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Arguments) Len() int {
	if a == nil {
		return 0
	}
	return len(a.args)
}

// Add appends one bound parameter.
func (a *Arguments) Add(v any) error {
	switch v := v.(type) {
	case nil:
		a.args = append(a.args, argument{format: formatBinary, null: true})
	case bool:
		a.args = append(a.args, argument{oid: TypeBool, format: formatBinary, value: encodeBool(v)})
	case int16:
		a.args = append(a.args, argument{oid: TypeInt2, format: formatBinary, value: encodeInt16(v)})
	case int32:
		a.args = append(a.args, argument{oid: TypeInt4, format: formatBinary, value: encodeInt32(v)})
	case int:
		a.args = append(a.args, argument{oid: TypeInt8, format: formatBinary, value: encodeInt64(int64(v))})
	case int64:
		a.args = append(a.args, argument{oid: TypeInt8, format: formatBinary, value: encodeInt64(v)})
	case float32:
		a.args = append(a.args, argument{oid: TypeFloat4, format: formatBinary, value: encodeFloat32(v)})
	case float64:
		a.args = append(a.args, argument{oid: TypeFloat8, format: formatBinary, value: encodeFloat64(v)})
	case string:
		a.args = append(a.args, argument{oid: TypeText, format: formatText, value: []byte(v)})
	case []byte:
		a.args = append(a.args, argument{oid: TypeBytea, format: formatBinary, value: v})
	default:
		return fmt.Errorf("postgres: cannot bind value of type %T", v)
	}
	return nil
}
