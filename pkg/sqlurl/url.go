// Package sqlurl wraps net/url with the accessor defaults database drivers
// expect from connection URLs.
package sqlurl

import (
	"net/url"
	"strconv"
	"strings"
)

// URL is a parsed connection URL of the shape
// scheme://[user[:pass]@]host[:port][/database][?k=v&...].
type URL struct {
	u *url.URL
}

// Parse parses a connection URL.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &URL{u: u}, nil
}

// Scheme returns the URL scheme.
func (u *URL) Scheme() string {
	return u.u.Scheme
}

// Host returns the host, defaulting to localhost when absent.
func (u *URL) Host() string {
	host := u.u.Hostname()
	if host == "" {
		return "localhost"
	}
	return host
}

// Port returns the port, or def when absent or malformed.
func (u *URL) Port(def uint16) uint16 {
	port := u.u.Port()
	if port == "" {
		return def
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return def
	}
	return uint16(n)
}

// Username returns the user name and whether one was present.
func (u *URL) Username() (string, bool) {
	if u.u.User == nil {
		return "", false
	}
	name := u.u.User.Username()
	return name, name != ""
}

// Password returns the password and whether one was present.
func (u *URL) Password() (string, bool) {
	if u.u.User == nil {
		return "", false
	}
	return u.u.User.Password()
}

// Database returns the database name and whether one was present.
func (u *URL) Database() (string, bool) {
	db := strings.TrimPrefix(u.u.Path, "/")
	return db, db != ""
}

// Param returns the first query parameter with the given key.
func (u *URL) Param(key string) (string, bool) {
	values := u.u.Query()
	if vs, ok := values[key]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}
