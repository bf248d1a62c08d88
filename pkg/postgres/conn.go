package postgres

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/prettynatty/sqlx/pkg/driver"
	"github.com/prettynatty/sqlx/pkg/sqlurl"
)

// drainTimeout bounds discarding unread rows when a cursor is closed early.
const drainTimeout = 30 * time.Second

var errConnBusy = errors.New("postgres: connection busy with an open cursor")

// Conn is a single connection to a PostgreSQL server.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	log     *zap.Logger

	user     string
	database string

	processID int32
	secretKey int32
	params    map[string]string

	rowsPending bool
	closed      bool
}

func open(ctx context.Context, rawURL string, log *zap.Logger) (*Conn, error) {
	u, err := sqlurl.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	user, ok := u.Username()
	if !ok {
		user = "postgres"
	}
	password, _ := u.Password()
	database, ok := u.Database()
	if !ok {
		database = user
	}

	host := u.Host()
	port := u.Port(DefaultPort)

	var d net.Dialer
	var netConn net.Conn
	if filepath.IsAbs(host) {
		sock := filepath.Join(host, ".s.PGSQL."+strconv.Itoa(int(port)))
		netConn, err = d.DialContext(ctx, "unix", sock)
	} else {
		netConn, err = d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	}
	if err != nil {
		return nil, err
	}

	c := &Conn{
		netConn:  netConn,
		br:       bufio.NewReader(netConn),
		log:      log,
		user:     user,
		database: database,
		params:   make(map[string]string),
	}

	if err := c.startup(ctx, password, u); err != nil {
		netConn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) startup(ctx context.Context, password string, u *sqlurl.URL) error {
	params := [][2]string{
		{"user", c.user},
		{"database", c.database},
	}
	if app, ok := u.Param("application_name"); ok {
		params = append(params, [2]string{"application_name", app})
	}
	if err := c.write(ctx, startupMessage(params)); err != nil {
		return err
	}

	var scram *scramClient
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			return err
		}

		switch typ {
		case msgAuthentication:
			r := &readBuf{buf: payload}
			code, err := r.int32()
			if err != nil {
				return err
			}

			switch code {
			case authOK:

			case authCleartextPassword:
				w := newWriteBuf('p')
				w.string(password)
				if err := c.write(ctx, w.finish()); err != nil {
					return err
				}

			case authMD5Password:
				saltBytes, err := r.take(4)
				if err != nil {
					return err
				}
				var salt [4]byte
				copy(salt[:], saltBytes)
				w := newWriteBuf('p')
				w.string(md5Password(c.user, password, salt))
				if err := c.write(ctx, w.finish()); err != nil {
					return err
				}

			case authSASL:
				if err := c.startSASL(ctx, r, password, &scram); err != nil {
					return err
				}

			case authSASLContinue:
				if scram == nil {
					return errors.New("postgres: SASL continue without SASL start")
				}
				final, err := scram.finalMessage(string(r.buf))
				if err != nil {
					return err
				}
				w := newWriteBuf('p')
				w.bytes([]byte(final))
				if err := c.write(ctx, w.finish()); err != nil {
					return err
				}

			case authSASLFinal:
				if scram == nil {
					return errors.New("postgres: SASL final without SASL start")
				}
				if err := scram.verifyServerFinal(string(r.buf)); err != nil {
					return err
				}

			default:
				return fmt.Errorf("postgres: unsupported authentication method %d", code)
			}

		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)

		case msgErrorResponse:
			return serverErrorFromFields(decodeErrorFields(payload))

		case msgReadyForQuery:
			return nil

		default:
			return unexpectedMessage(typ)
		}
	}
}

func (c *Conn) startSASL(ctx context.Context, r *readBuf, password string, scram **scramClient) error {
	supported := false
	for r.remaining() > 0 {
		mech, err := r.cstring()
		if err != nil {
			return err
		}
		if mech == "" {
			break
		}
		if mech == "SCRAM-SHA-256" {
			supported = true
		}
	}
	if !supported {
		return errors.New("postgres: server offers no supported SASL mechanism")
	}

	sc, err := newScramClient(c.user, password)
	if err != nil {
		return err
	}
	*scram = sc

	first := sc.firstMessage()
	w := newWriteBuf('p')
	w.string("SCRAM-SHA-256")
	w.int32(int32(len(first)))
	w.bytes([]byte(first))
	return c.write(ctx, w.finish())
}

// handleAsync consumes messages the server may send at any time.
func (c *Conn) handleAsync(typ byte, payload []byte) {
	switch typ {
	case msgParameterStatus:
		r := &readBuf{buf: payload}
		key, err1 := r.cstring()
		value, err2 := r.cstring()
		if err1 == nil && err2 == nil {
			c.params[key] = value
		}
	case msgBackendKeyData:
		r := &readBuf{buf: payload}
		c.processID, _ = r.int32()
		c.secretKey, _ = r.int32()
	case msgNoticeResponse:
		notice := serverErrorFromFields(decodeErrorFields(payload))
		c.log.Debug("server notice", zap.String("message", notice.Message))
	}
}

func (c *Conn) write(ctx context.Context, buf []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.netConn.SetWriteDeadline(deadline)
	} else {
		c.netConn.SetWriteDeadline(time.Time{})
	}
	_, err := c.netConn.Write(buf)
	return err
}

// read returns the next backend message.
func (c *Conn) read(ctx context.Context) (byte, []byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.netConn.SetReadDeadline(deadline)
	} else {
		c.netConn.SetReadDeadline(time.Time{})
	}

	var header [5]byte
	if _, err := io.ReadFull(c.br, header[:]); err != nil {
		return 0, nil, err
	}
	typ := header[0]
	length := int(binary.BigEndian.Uint32(header[1:])) - 4
	if length < 0 {
		return 0, nil, errShortMessage
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return 0, nil, err
	}
	return typ, payload, nil
}

// Ping sends an empty query and waits for the server to come back ready.
func (c *Conn) Ping(ctx context.Context) error {
	return c.Send(ctx, "")
}

// Close sends Terminate best-effort and closes the socket. Idempotent.
func (c *Conn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	w := newWriteBuf('X')
	c.write(ctx, w.finish())
	return c.netConn.Close()
}

// Send runs raw SQL through the simple-query protocol, discarding any
// result rows.
func (c *Conn) Send(ctx context.Context, sql string) error {
	if c.rowsPending {
		return errConnBusy
	}

	w := newWriteBuf('Q')
	w.string(sql)
	if err := c.write(ctx, w.finish()); err != nil {
		return err
	}

	var serverErr error
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case msgRowDescription, msgDataRow, msgCommandComplete, msgEmptyQueryResponse:
		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)
		case msgErrorResponse:
			serverErr = serverErrorFromFields(decodeErrorFields(payload))
		case msgReadyForQuery:
			return serverErr
		default:
			return unexpectedMessage(typ)
		}
	}
}

// Execute runs a statement through the extended protocol and returns the
// affected-row count.
func (c *Conn) Execute(ctx context.Context, sql string, args driver.Arguments) (uint64, error) {
	if c.rowsPending {
		return 0, errConnBusy
	}

	bound, err := pgArgs(args)
	if err != nil {
		return 0, err
	}
	if err := c.parseBindExecute(ctx, sql, bound, nil); err != nil {
		return 0, err
	}

	var rows uint64
	var serverErr error
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			return 0, err
		}
		switch typ {
		case msgParseComplete, msgBindComplete, msgDataRow, msgEmptyQueryResponse:
		case msgCommandComplete:
			r := &readBuf{buf: payload}
			tag, err := r.cstring()
			if err == nil {
				rows = commandTagRows(tag)
			}
		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)
		case msgErrorResponse:
			serverErr = serverErrorFromFields(decodeErrorFields(payload))
		case msgReadyForQuery:
			return rows, serverErr
		default:
			return 0, unexpectedMessage(typ)
		}
	}
}

// Fetch runs a query and returns a cursor. The statement is described
// first so known types can be requested in binary format.
func (c *Conn) Fetch(ctx context.Context, sql string, args driver.Arguments) (driver.Rows, error) {
	if c.rowsPending {
		return nil, errConnBusy
	}

	fields, err := c.describeFields(ctx, sql)
	if err != nil {
		return nil, err
	}

	formats := make([]int16, len(fields))
	for i, f := range fields {
		if f.typeID.binaryCapable() {
			formats[i] = formatBinary
			fields[i].typeFormat = formatBinary
		} else {
			fields[i].typeFormat = formatText
		}
	}

	bound, err := pgArgs(args)
	if err != nil {
		return nil, err
	}
	if err := c.parseBindExecute(ctx, sql, bound, formats); err != nil {
		return nil, err
	}
	c.rowsPending = true
	return &Rows{conn: c, fields: fields}, nil
}

// FetchOptional runs a query expected to produce zero or one row.
func (c *Conn) FetchOptional(ctx context.Context, sql string, args driver.Arguments) (driver.Row, error) {
	rows, err := c.Fetch(ctx, sql, args)
	if err != nil {
		return nil, err
	}

	var row driver.Row
	if rows.Next(ctx) {
		row = rows.Row()
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return row, nil
}

// Describe reports the parameter and column schema of a statement without
// executing it.
func (c *Conn) Describe(ctx context.Context, sql string) (*driver.Describe, error) {
	if c.rowsPending {
		return nil, errConnBusy
	}

	w := newWriteBuf('P')
	w.string("")
	w.string(sql)
	w.int16(0)
	buf := w.finish()

	w = newWriteBuf('D')
	w.byte('S')
	w.string("")
	buf = append(buf, w.finish()...)

	w = newWriteBuf('S')
	buf = append(buf, w.finish()...)

	if err := c.write(ctx, buf); err != nil {
		return nil, err
	}

	desc := &driver.Describe{}
	var serverErr error
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		switch typ {
		case msgParseComplete, msgNoData:
		case msgParameterDescription:
			ids, err := decodeParameterDescription(payload)
			if err != nil {
				return nil, err
			}
			desc.Params = make([]driver.TypeID, len(ids))
			for i, id := range ids {
				desc.Params[i] = id
			}
		case msgRowDescription:
			fields, err := decodeRowDescription(payload)
			if err != nil {
				return nil, err
			}
			desc.Columns = make([]driver.Column, len(fields))
			for i, f := range fields {
				desc.Columns[i] = driver.Column{Name: f.name, TableID: f.tableID, Type: f.typeID}
			}
		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)
		case msgErrorResponse:
			serverErr = serverErrorFromFields(decodeErrorFields(payload))
		case msgReadyForQuery:
			if serverErr != nil {
				return nil, serverErr
			}
			return desc, nil
		default:
			return nil, unexpectedMessage(typ)
		}
	}
}

func (c *Conn) Begin(ctx context.Context) error {
	return c.Send(ctx, "BEGIN")
}

func (c *Conn) Commit(ctx context.Context) error {
	return c.Send(ctx, "COMMIT")
}

func (c *Conn) Rollback(ctx context.Context) error {
	return c.Send(ctx, "ROLLBACK")
}

// describeFields parses and describes a statement, returning its result
// columns.
func (c *Conn) describeFields(ctx context.Context, sql string) ([]fieldDescription, error) {
	w := newWriteBuf('P')
	w.string("")
	w.string(sql)
	w.int16(0)
	buf := w.finish()

	w = newWriteBuf('D')
	w.byte('S')
	w.string("")
	buf = append(buf, w.finish()...)

	w = newWriteBuf('S')
	buf = append(buf, w.finish()...)

	if err := c.write(ctx, buf); err != nil {
		return nil, err
	}

	var fields []fieldDescription
	var serverErr error
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		switch typ {
		case msgParseComplete, msgParameterDescription, msgNoData:
		case msgRowDescription:
			fields, err = decodeRowDescription(payload)
			if err != nil {
				return nil, err
			}
		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)
		case msgErrorResponse:
			serverErr = serverErrorFromFields(decodeErrorFields(payload))
		case msgReadyForQuery:
			return fields, serverErr
		default:
			return nil, unexpectedMessage(typ)
		}
	}
}

// parseBindExecute sends Parse, Bind, Execute and Sync in one batch.
// resultFormats nil means all-text results.
func (c *Conn) parseBindExecute(ctx context.Context, sql string, args *Arguments, resultFormats []int16) error {
	w := newWriteBuf('P')
	w.string("")
	w.string(sql)
	w.int16(int16(args.Len()))
	for _, a := range args.argList() {
		w.int32(int32(a.oid))
	}
	buf := w.finish()

	w = newWriteBuf('B')
	w.string("")
	w.string("")
	w.int16(int16(args.Len()))
	for _, a := range args.argList() {
		w.int16(a.format)
	}
	w.int16(int16(args.Len()))
	for _, a := range args.argList() {
		if a.null {
			w.int32(-1)
			continue
		}
		w.int32(int32(len(a.value)))
		w.bytes(a.value)
	}
	w.int16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.int16(f)
	}
	buf = append(buf, w.finish()...)

	w = newWriteBuf('E')
	w.string("")
	w.int32(0)
	buf = append(buf, w.finish()...)

	w = newWriteBuf('S')
	buf = append(buf, w.finish()...)

	return c.write(ctx, buf)
}

// nextRow reads the next DataRow for an open cursor. done is true once the
// server is ready for the next statement.
func (c *Conn) nextRow(ctx context.Context) ([][]byte, bool, error) {
	if !c.rowsPending {
		return nil, true, nil
	}

	var serverErr error
	for {
		typ, payload, err := c.read(ctx)
		if err != nil {
			c.rowsPending = false
			return nil, true, err
		}
		switch typ {
		case msgParseComplete, msgBindComplete, msgCommandComplete, msgEmptyQueryResponse:
		case msgDataRow:
			values, err := decodeDataRow(payload)
			if err != nil {
				c.rowsPending = false
				return nil, true, err
			}
			return values, false, nil
		case msgParameterStatus, msgBackendKeyData, msgNoticeResponse:
			c.handleAsync(typ, payload)
		case msgErrorResponse:
			serverErr = serverErrorFromFields(decodeErrorFields(payload))
		case msgReadyForQuery:
			c.rowsPending = false
			return nil, true, serverErr
		default:
			c.rowsPending = false
			return nil, true, unexpectedMessage(typ)
		}
	}
}

func (a *Arguments) argList() []argument {
	if a == nil {
		return nil
	}
	return a.args
}

// pgArgs narrows the driver argument buffer to this package's type.
func pgArgs(args driver.Arguments) (*Arguments, error) {
	if args == nil {
		return nil, nil
	}
	if a, ok := args.(*Arguments); ok {
		return a, nil
	}
	return nil, fmt.Errorf("postgres: unsupported argument buffer %T", args)
}
