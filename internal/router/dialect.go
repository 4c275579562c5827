package router

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect hides the differences between the supported SQL engines. Queries
// are written with '?' placeholders and rebound for engines that number them.
type dialect struct {
	name        string
	random      string
	lockRows    string
	numbered    bool
	returningID bool
	schema      []string
}

var dialects = map[string]dialect{
	"mysql": {
		name:     "mysql",
		random:   "RAND()",
		lockRows: " FOR UPDATE",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				username VARCHAR(100) UNIQUE NOT NULL,
				password VARCHAR(255) NOT NULL,
				full_name VARCHAR(255) NOT NULL,
				role VARCHAR(32) NOT NULL DEFAULT 'operator',
				status VARCHAR(32) NOT NULL DEFAULT 'offline',
				phone_extension VARCHAR(32),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
				INDEX idx_status (status),
				INDEX idx_role (role)
			)`,
			`CREATE TABLE IF NOT EXISTS calls (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				caller_number VARCHAR(50) NOT NULL,
				operator_id BIGINT NULL,
				status VARCHAR(32) NOT NULL,
				duration INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				ended_at TIMESTAMP NULL,
				notes TEXT,
				INDEX idx_status (status),
				INDEX idx_started_at (started_at),
				INDEX idx_operator (operator_id)
			)`,
		},
	},
	"postgres": {
		name:        "postgres",
		random:      "RANDOM()",
		lockRows:    " FOR UPDATE",
		numbered:    true,
		returningID: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username VARCHAR(100) UNIQUE NOT NULL,
				password VARCHAR(255) NOT NULL,
				full_name VARCHAR(255) NOT NULL,
				role VARCHAR(32) NOT NULL DEFAULT 'operator',
				status VARCHAR(32) NOT NULL DEFAULT 'offline',
				phone_extension VARCHAR(32),
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS calls (
				id BIGSERIAL PRIMARY KEY,
				caller_number VARCHAR(50) NOT NULL,
				operator_id BIGINT NULL,
				status VARCHAR(32) NOT NULL,
				duration INT NOT NULL DEFAULT 0,
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				ended_at TIMESTAMPTZ NULL,
				notes TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_status ON users (status)`,
			`CREATE INDEX IF NOT EXISTS idx_calls_status ON calls (status)`,
			`CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls (started_at)`,
		},
	},
	"sqlite": {
		name:   "sqlite",
		random: "RANDOM()",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				password TEXT NOT NULL,
				full_name TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'operator',
				status TEXT NOT NULL DEFAULT 'offline',
				phone_extension TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS calls (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				caller_number TEXT NOT NULL,
				operator_id INTEGER NULL,
				status TEXT NOT NULL,
				duration INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				ended_at TIMESTAMP NULL,
				notes TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_calls_status ON calls (status)`,
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Router) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Router) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Router) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, r.dialect.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (r *Router) insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	if r.dialect.returningID {
		var id int64
		err := r.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := r.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
