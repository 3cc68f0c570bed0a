// Package connstr parses the engine's connection descriptor URLs — the
// wire-level contract shared by the CLI and pkg/engine — into a structured
// form, with no connection side effects of its own.
package connstr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dbschemadiff/engine/pkg/engineerr"
)

// Dialect identifies which Catalog Loader a descriptor targets.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MariaDB  Dialect = "mariadb"
)

var defaultPort = map[Dialect]string{
	Postgres: "5432",
	MariaDB:  "3306",
}

// Descriptor is a parsed connection URL of the shape
// {postgres|mariadb}://user[:pass]@host[:port]/database?schema=NAME[&ssl=true].
type Descriptor struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     string
	Database string
	Schema   string
	SSL      bool
}

// Parse parses raw into a Descriptor. The schema query parameter is
// required; its absence is a ConfigError, as is an unrecognized dialect.
func Parse(raw string) (*Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("invalid connection URL: %s", err)}
	}

	dialect := Dialect(u.Scheme)
	if dialect != Postgres && dialect != MariaDB {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("unsupported dialect %q", u.Scheme)}
	}

	schemaName := u.Query().Get("schema")
	if schemaName == "" {
		return nil, engineerr.ConfigError{Reason: "schema query parameter is required"}
	}

	host := u.Hostname()
	if host == "" {
		return nil, engineerr.ConfigError{Reason: "host is required"}
	}

	port := u.Port()
	if port == "" {
		port = defaultPort[dialect]
	}

	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		return nil, engineerr.ConfigError{Reason: "database is required"}
	}

	password, _ := u.User.Password()
	ssl, _ := strconv.ParseBool(u.Query().Get("ssl"))

	return &Descriptor{
		Dialect:  dialect,
		User:     u.User.Username(),
		Password: password,
		Host:     host,
		Port:     port,
		Database: database,
		Schema:   schemaName,
		SSL:      ssl,
	}, nil
}

// String renders the descriptor back to its URL form, masking the password
// for display (e.g. in logs or error messages).
func (d *Descriptor) String() string {
	userinfo := d.User
	if d.Password != "" {
		userinfo += ":***"
	}
	return fmt.Sprintf("%s://%s@%s:%s/%s?schema=%s&ssl=%t", d.Dialect, userinfo, d.Host, d.Port, d.Database, d.Schema, d.SSL)
}

// PostgresDSN renders the descriptor as a lib/pq-compatible DSN string.
func (d *Descriptor) PostgresDSN() string {
	sslmode := "disable"
	if d.SSL {
		sslmode = "require"
	}
	v := url.Values{}
	v.Set("sslmode", sslmode)
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%s", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// MariaDBDSN renders the descriptor as a go-sql-driver/mysql DSN string,
// i.e. user:pass@tcp(host:port)/db?query.
func (d *Descriptor) MariaDBDSN() string {
	auth := d.User
	if d.Password != "" {
		auth += ":" + d.Password
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s", auth, d.Host, d.Port, d.Database)
	if d.SSL {
		dsn += "?tls=true"
	}
	return dsn
}
