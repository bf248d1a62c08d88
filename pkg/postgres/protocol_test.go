package postgres

import (
	"encoding/binary"
	"testing"
)

func buildRowDescription(fields ...[]byte) []byte {
	buf := binary.BigEndian.AppendUint16(nil, uint16(len(fields)))
	for _, f := range fields {
		buf = append(buf, f...)
	}
	return buf
}

func field(name string, tableID uint32, columnID int16, typeID uint32) []byte {
	var buf []byte
	buf = append(buf, name...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint32(buf, tableID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(columnID))
	buf = binary.BigEndian.AppendUint32(buf, typeID)
	buf = binary.BigEndian.AppendUint16(buf, 0) // type size
	buf = binary.BigEndian.AppendUint32(buf, 0) // type modifier
	buf = binary.BigEndian.AppendUint16(buf, 0) // format
	return buf
}

func TestDecodeRowDescription(t *testing.T) {
	payload := buildRowDescription(
		field("user_id", 0, 0, 0),
		field("number_of_pages", 0, 0, 0x0500),
	)

	fields, err := decodeRowDescription(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].name != "user_id" {
		t.Errorf("expected field name user_id, got %q", fields[0].name)
	}
	if fields[0].typeID != 0 {
		t.Errorf("expected type id 0, got %d", fields[0].typeID)
	}
	if fields[1].typeID != 0x0500 {
		t.Errorf("expected type id 0x0500, got %d", fields[1].typeID)
	}
}

func TestDecodeEmptyRowDescription(t *testing.T) {
	fields, err := decodeRowDescription([]byte{0, 0})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("expected 0 fields, got %d", len(fields))
	}
}

func TestDecodeRowDescriptionUnnamedColumn(t *testing.T) {
	payload := buildRowDescription(field("?column?", 0, 0, 23))

	fields, err := decodeRowDescription(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if fields[0].name != "" {
		t.Errorf("placeholder column name should be dropped, got %q", fields[0].name)
	}
	if fields[0].typeID != TypeInt4 {
		t.Errorf("expected INT4, got %s", fields[0].typeID)
	}
}

func TestDecodeRowDescriptionTruncated(t *testing.T) {
	payload := buildRowDescription(field("id", 0, 0, 23))
	if _, err := decodeRowDescription(payload[:len(payload)-3]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestDecodeDataRow(t *testing.T) {
	var payload []byte
	payload = binary.BigEndian.AppendUint16(payload, 3)
	payload = binary.BigEndian.AppendUint32(payload, 2)
	payload = append(payload, 'h', 'i')
	payload = binary.BigEndian.AppendUint32(payload, 0xFFFFFFFF) // NULL
	payload = binary.BigEndian.AppendUint32(payload, 0)

	values, err := decodeDataRow(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	if string(values[0]) != "hi" {
		t.Errorf("expected hi, got %q", values[0])
	}
	if values[1] != nil {
		t.Error("expected NULL for second value")
	}
	if values[2] == nil || len(values[2]) != 0 {
		t.Errorf("expected empty non-null value, got %v", values[2])
	}
}

func TestCommandTagRows(t *testing.T) {
	cases := map[string]uint64{
		"INSERT 0 5": 5,
		"UPDATE 3":   3,
		"DELETE 0":   0,
		"SELECT 7":   7,
		"BEGIN":      0,
		"":           0,
	}
	for tag, want := range cases {
		if got := commandTagRows(tag); got != want {
			t.Errorf("commandTagRows(%q) = %d, want %d", tag, got, want)
		}
	}
}

func TestStartupMessageFraming(t *testing.T) {
	msg := startupMessage([][2]string{{"user", "alice"}, {"database", "app"}})

	length := binary.BigEndian.Uint32(msg[:4])
	if int(length) != len(msg) {
		t.Fatalf("length field %d does not match message size %d", length, len(msg))
	}
	if binary.BigEndian.Uint32(msg[4:8]) != protocolVersion {
		t.Errorf("wrong protocol version")
	}
	want := "user\x00alice\x00database\x00app\x00\x00"
	if string(msg[8:]) != want {
		t.Errorf("unexpected parameter block %q", msg[8:])
	}
}

func TestWriteBufFinishPatchesLength(t *testing.T) {
	w := newWriteBuf('Q')
	w.string("SELECT 1")
	msg := w.finish()

	if msg[0] != 'Q' {
		t.Fatalf("wrong message type %q", msg[0])
	}
	length := binary.BigEndian.Uint32(msg[1:5])
	if int(length) != len(msg)-1 {
		t.Errorf("length field %d does not cover payload %d", length, len(msg)-1)
	}
}

func TestDecodeErrorFields(t *testing.T) {
	payload := []byte("SERROR\x00C42601\x00Msyntax error\x00\x00")
	err := serverErrorFromFields(decodeErrorFields(payload))

	if err.Severity != "ERROR" || err.Code != "42601" || err.Message != "syntax error" {
		t.Errorf("unexpected fields: %+v", err)
	}
}
