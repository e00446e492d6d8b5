package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/lib/pq"
)

// Dialect selects SQL differences between the supported backends.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("version conflict")
)

// DB is a database handle that knows its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects to DATABASE_URL and applies the schema.
// postgres:// and postgresql:// URLs use lib/pq; sqlite://path, file: DSNs and bare paths use sqlite.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	dialect, dsn := parseDatabaseURL(databaseURL)
	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetMaxIdleConns(8)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	db := &DB{DB: sqlDB, dialect: dialect}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }

func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

func parseDatabaseURL(raw string) (Dialect, string) {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, raw
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, raw[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		return DialectSQLite, raw[len("sqlite:"):]
	default:
		return DialectSQLite, raw
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) migrate(ctx context.Context) error {
	idType := "INTEGER PRIMARY KEY AUTOINCREMENT"
	boolType := "INTEGER"
	if db.dialect == DialectPostgres {
		idType = "BIGSERIAL PRIMARY KEY"
		boolType = "BOOLEAN"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + idType + `,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			draws INTEGER NOT NULL DEFAULT 0,
			elo INTEGER NOT NULL DEFAULT 1200,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id ` + idType + `,
			white_id BIGINT REFERENCES users(id),
			black_id BIGINT REFERENCES users(id),
			status TEXT NOT NULL,
			fen TEXT NOT NULL,
			moves TEXT NOT NULL DEFAULT '[]',
			ply INTEGER NOT NULL DEFAULT 0,
			result TEXT,
			started_at BIGINT NOT NULL,
			ended_at BIGINT,
			is_vs_ai ` + boolType + ` NOT NULL DEFAULT ` + falseLiteral(db.dialect) + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_status ON games (status, is_vs_ai, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_games_white ON games (white_id)`,
		`CREATE INDEX IF NOT EXISTS idx_games_black ON games (black_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_elo ON users (elo DESC, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func falseLiteral(d Dialect) string {
	if d == DialectPostgres {
		return "FALSE"
	}
	return "0"
}

// isDuplicateKeyError reports unique constraint violations for both backends.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }
