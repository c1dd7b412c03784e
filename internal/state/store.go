// Package state persists the schema registry and the lineage log in a SQL
// database, as an alternative to the JSON and JSONL files.
//
// SQLite (pure Go, modernc.org/sqlite) and PostgreSQL (pgx) are supported.
// The schema is managed with goose migrations embedded in the binary.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Dialect selects the SQL flavour of a store.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case DialectSQLite:
		return DialectSQLite, nil
	case DialectPostgres, "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported store dialect %q (want sqlite or postgres)", s)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Store implements core.SchemaStore, core.SchemaHistory and
// core.LineageStore over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	clock   fileutil.Clock
}

var (
	_ core.SchemaStore   = (*Store)(nil)
	_ core.SchemaHistory = (*Store)(nil)
	_ core.LineageStore  = (*Store)(nil)
)

// Open connects to dsn, verifies the connection and runs migrations.
// For SQLite, dsn is a file path; the parent directory is created.
func Open(ctx context.Context, d Dialect, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	connStr := dsn
	if d == DialectSQLite {
		if dsn == "" {
			return nil, fmt.Errorf("sqlite store requires a database path")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := fileutil.EnsureDir(parentDir(dsn)); err != nil {
				return nil, err
			}
		}
		connStr = sqliteDSN(dsn)
	}

	logger.Debug("opening state store", slog.String("dialect", string(d)))
	db, err := sql.Open(d.driverName(), connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d, err)
	}
	if d == DialectSQLite {
		// one writer at a time; readers wait on busy_timeout instead of failing
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d, err)
	}

	s := New(db, d, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The caller is responsible for migrations.
func New(db *sql.DB, d Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, dialect: d, logger: logger, clock: fileutil.SystemClock}
}

// SetClock overrides the clock used for recorded_at / updated_at columns.
func (s *Store) SetClock(clock fileutil.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	// _txlock=immediate takes the write lock at BEGIN
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func parentDir(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i > 0 {
		return path[:i]
	}
	return ""
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries in this
// package never contain literal question marks.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

func (s *Store) now() string {
	return fileutil.FormatTimestamp(s.clock().UTC())
}

func (s *Store) ready() error {
	if s.db == nil {
		return errors.New("database not opened")
	}
	return nil
}
