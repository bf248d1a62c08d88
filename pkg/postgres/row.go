package postgres

import (
	"context"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// Row is one decoded result row.
type Row struct {
	fields []fieldDescription
	values [][]byte
}

func (r *Row) Len() int {
	return len(r.values)
}

// Get returns the raw value of column i and whether it was non-null.
func (r *Row) Get(i int) ([]byte, bool) {
	if i < 0 || i >= len(r.values) {
		return nil, false
	}
	v := r.values[i]
	return v, v != nil
}

func (r *Row) GetNamed(name string) ([]byte, bool) {
	for i, f := range r.fields {
		if f.name == name {
			return r.Get(i)
		}
	}
	return nil, false
}

// Column reports the description of column i.
func (r *Row) Column(i int) (driver.Column, bool) {
	if i < 0 || i >= len(r.fields) {
		return driver.Column{}, false
	}
	f := r.fields[i]
	return driver.Column{Name: f.name, TableID: f.tableID, Type: f.typeID}, true
}

// Format renders column i for display using its wire format.
func (r *Row) Format(i int) (string, bool) {
	if i < 0 || i >= len(r.values) {
		return "", false
	}
	f := r.fields[i]
	return FormatValue(r.values[i], f.typeID, f.typeFormat == formatBinary)
}

// Rows is a lazy cursor over a result set. It reads rows from the
// connection as the caller advances; the connection must not be reused
// until the cursor is closed or exhausted.
type Rows struct {
	conn   *Conn
	fields []fieldDescription
	cur    *Row
	err    error
	done   bool
}

// Next advances to the next row. It returns false at the end of the result
// set or on error; check Err afterwards.
func (rs *Rows) Next(ctx context.Context) bool {
	if rs.done || rs.err != nil {
		return false
	}

	values, done, err := rs.conn.nextRow(ctx)
	if err != nil {
		rs.err = err
		rs.done = true
		return false
	}
	if done {
		rs.done = true
		return false
	}
	rs.cur = &Row{fields: rs.fields, values: values}
	return true
}

func (rs *Rows) Row() driver.Row {
	return rs.cur
}

func (rs *Rows) Err() error {
	return rs.err
}

// Close drains any unread rows so the connection is usable again.
func (rs *Rows) Close() error {
	if rs.done {
		return rs.err
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		_, done, err := rs.conn.nextRow(ctx)
		if err != nil {
			rs.err = err
			rs.done = true
			return err
		}
		if done {
			rs.done = true
			return nil
		}
	}
}

// Columns reports the result column descriptions.
func (rs *Rows) Columns() []driver.Column {
	cols := make([]driver.Column, len(rs.fields))
	for i, f := range rs.fields {
		cols[i] = driver.Column{Name: f.name, TableID: f.tableID, Type: f.typeID}
	}
	return cols
}
