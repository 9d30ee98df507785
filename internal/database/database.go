package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Table Structure:
//
// CREATE TABLE IF NOT EXISTS saved_job (
// 	visitor_id CHAR(27) NOT NULL,
// 	job_id INTEGER NOT NULL,
// 	saved_at TIMESTAMP NOT NULL DEFAULT NOW(),
// 	PRIMARY KEY(visitor_id, job_id)
// );

const migrateSavedJob = `CREATE TABLE IF NOT EXISTS saved_job (
	visitor_id CHAR(27) NOT NULL,
	job_id INTEGER NOT NULL,
	saved_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY(visitor_id, job_id)
)`

// GetDbConn opens and pings a Postgres connection pool.
func GetDbConn(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Migrate creates the tables this service owns.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrateSavedJob); err != nil {
		return errors.Wrap(err, "unable to create saved_job")
	}
	return nil
}

// CloseDbConn closes db conn
func CloseDbConn(conn *sql.DB) {
	conn.Close()
}
