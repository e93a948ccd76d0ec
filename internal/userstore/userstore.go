// Package userstore is the synchronous DB-backed user_verify collaborator
// spec.md §6 calls out as an opaque capability invoked from worker
// goroutines during POST handling. It is deliberately out of the
// connection-engine's core scope; this package only needs to tolerate
// WorkerCount concurrent callers, which a pooled database/sql.DB gives for
// free. No example repo in the retrieval pack vendors a real SQL driver
// (hexinfra-gorox's mysql dealets speak the MySQL wire protocol
// themselves rather than wrapping a driver), so this uses the standard,
// widely-used go-sql-driver/mysql rather than inventing one.
package userstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Config names the database to connect to.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PoolSize int
}

// Store wraps a pooled MySQL connection used for login/register checks.
type Store struct {
	db *sql.DB
}

// Open connects (lazily, per database/sql semantics) and sizes the pool
// to tolerate cfg.PoolSize concurrent callers. cmd/mywebserver fills it
// from the separate db-pool-size setting, not from the worker count.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
		db.SetMaxIdleConns(cfg.PoolSize)
	}
	return &Store{db: db}, nil
}

// Verify checks a username/password pair. When isLogin is true it checks
// credentials against an existing row; otherwise it registers a new user,
// rejecting the attempt if the username is already taken. Matches
// HttpRequest::UserVerify in original_source/code/http/httprequest.h.
func (s *Store) Verify(ctx context.Context, username, password string, isLogin bool) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var storedPassword string
	err = tx.QueryRowContext(ctx,
		"SELECT password FROM user WHERE username=?", username).Scan(&storedPassword)

	switch {
	case err == sql.ErrNoRows:
		if isLogin {
			return false, nil
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user(username, password) VALUES (?, ?)", username, password); err != nil {
			return false, err
		}
		return true, tx.Commit()
	case err != nil:
		return false, err
	default:
		if isLogin {
			return storedPassword == password, nil
		}
		// Registration requested but the username already exists.
		return false, nil
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
