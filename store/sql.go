package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultTable = "Users"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLConfig configures [OpenSQL].
type SQLConfig struct {
	// Driver is "mysql" or "postgres".
	Driver          string
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQL reads user status from a relational users table.
type SQL struct {
	db    *sqlx.DB
	query string
}

// OpenSQL connects, pings and returns a ready store.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQL, error) {
	switch cfg.Driver {
	case "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s, err := NewSQL(db, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an open handle. An empty table means "Users".
func NewSQL(db *sqlx.DB, table string) (*SQL, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	query := db.Rebind(fmt.Sprintf("SELECT status FROM %s WHERE user_id = ? LIMIT 1", table))
	return &SQL{db: db, query: query}, nil
}

// UserStatus returns the raw status column. found is false when no row
// matches. A NULL status is returned as "".
func (s *SQL) UserStatus(ctx context.Context, userID int64) (string, bool, error) {
	var status sql.NullString
	if err := s.db.GetContext(ctx, &status, s.query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query user status: %w", err)
	}
	return status.String, true, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
