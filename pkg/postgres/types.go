package postgres

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var errEmptyValue = errors.New("postgres: expected at least one byte, got none")

// Binary-format encoders. PostgreSQL sends and receives these types as
// fixed-width big-endian values.

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func encodeInt16(v int16) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(v))
}

func encodeInt32(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

func encodeInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func encodeFloat32(v float32) []byte {
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(v))
}

func encodeFloat64(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(v))
}

// DecodeBool decodes a binary-format BOOL value.
func DecodeBool(buf []byte) (bool, error) {
	if len(buf) < 1 {
		return false, errEmptyValue
	}
	return buf[0] != 0, nil
}

// DecodeInt16 decodes a binary-format INT2 value.
func DecodeInt16(buf []byte) (int16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("postgres: expected 2 bytes for INT2, got %d", len(buf))
	}
	return int16(binary.BigEndian.Uint16(buf)), nil
}

// DecodeInt32 decodes a binary-format INT4 value.
func DecodeInt32(buf []byte) (int32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("postgres: expected 4 bytes for INT4, got %d", len(buf))
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

// DecodeInt64 decodes a binary-format INT8 value.
func DecodeInt64(buf []byte) (int64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("postgres: expected 8 bytes for INT8, got %d", len(buf))
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// DecodeFloat32 decodes a binary-format FLOAT4 value.
func DecodeFloat32(buf []byte) (float32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("postgres: expected 4 bytes for FLOAT4, got %d", len(buf))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf)), nil
}

// DecodeFloat64 decodes a binary-format FLOAT8 value.
func DecodeFloat64(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("postgres: expected 8 bytes for FLOAT8, got %d", len(buf))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}

// FormatValue renders a result value for display, using the column type and
// wire format it arrived with. NULL renders as an empty string with ok
// false.
func FormatValue(value []byte, typ TypeID, binaryFormat bool) (string, bool) {
	if value == nil {
		return "", false
	}
	if !binaryFormat {
		return string(value), true
	}

	switch typ {
	case TypeBool:
		v, err := DecodeBool(value)
		if err == nil {
			return strconv.FormatBool(v), true
		}
	case TypeInt2:
		v, err := DecodeInt16(value)
		if err == nil {
			return strconv.FormatInt(int64(v), 10), true
		}
	case TypeInt4:
		v, err := DecodeInt32(value)
		if err == nil {
			return strconv.FormatInt(int64(v), 10), true
		}
	case TypeInt8:
		v, err := DecodeInt64(value)
		if err == nil {
			return strconv.FormatInt(v, 10), true
		}
	case TypeFloat4:
		v, err := DecodeFloat32(value)
		if err == nil {
			return strconv.FormatFloat(float64(v), 'g', -1, 32), true
		}
	case TypeFloat8:
		v, err := DecodeFloat64(value)
		if err == nil {
			return strconv.FormatFloat(v, 'g', -1, 64), true
		}
	}
	return fmt.Sprintf("\\x%x", value), true
}
