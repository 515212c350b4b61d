package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver "pgx"
	_ "github.com/sijms/go-ora/v2"     // oracle driver "oracle"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name   string
	Driver string
	// bind renders the n-th (1-based) positional parameter.
	bind func(n int) string
	// amountText renders an amount column as text so it can be parsed exactly.
	amountText func(column string) string
}

var (
	// Postgres uses pgx through database/sql.
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "pgx",
		bind:       func(n int) string { return "$" + strconv.Itoa(n) },
		amountText: func(column string) string { return column + "::text" },
	}
	// Oracle uses go-ora through database/sql.
	Oracle = Dialect{
		Name:       "oracle",
		Driver:     "oracle",
		bind:       func(n int) string { return ":" + strconv.Itoa(n) },
		amountText: func(column string) string { return "TO_CHAR(" + column + ")" },
	}
)

// DialectByName resolves a dialect from configuration.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case Oracle.Name:
		return Oracle, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unknown dialect %q", name)
	}
}

// Open opens a pooled connection and verifies it with a ping.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("sqlstore: empty dsn")
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect.Name, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect.Name, err)
	}
	return db, nil
}
