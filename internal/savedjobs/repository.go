package savedjobs

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Repository is a Postgres backed Store over the saved_job table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db}
}

func (r *Repository) Saved(ctx context.Context, visitorID string) (Set, error) {
	set := Set{}
	rows, err := r.db.QueryContext(ctx, `SELECT job_id FROM saved_job WHERE visitor_id = $1`, visitorID)
	if err != nil {
		return set, errors.Wrap(err, "unable to query saved jobs")
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return Set{}, err
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (r *Repository) IsSaved(ctx context.Context, visitorID string, id int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM saved_job WHERE visitor_id = $1 AND job_id = $2)`,
		visitorID,
		id,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "unable to check saved job")
	}
	return exists, nil
}

// Toggle removes the row if present and inserts it otherwise, within one
// transaction.
func (r *Repository) Toggle(ctx context.Context, visitorID string, id int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "unable to begin toggle")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM saved_job WHERE visitor_id = $1 AND job_id = $2`, visitorID, id)
	if err != nil {
		return false, errors.Wrap(err, "unable to delete saved job")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	saved := n == 0
	if saved {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO saved_job (visitor_id, job_id, saved_at) VALUES ($1, $2, NOW()) ON CONFLICT (visitor_id, job_id) DO NOTHING`,
			visitorID,
			id,
		)
		if err != nil {
			return false, errors.Wrap(err, "unable to save job")
		}
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "unable to commit toggle")
	}
	return saved, nil
}

func (r *Repository) Put(ctx context.Context, visitorID string, id int, saved bool) error {
	if !saved {
		_, err := r.db.ExecContext(ctx, `DELETE FROM saved_job WHERE visitor_id = $1 AND job_id = $2`, visitorID, id)
		return errors.Wrap(err, "unable to delete saved job")
	}
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO saved_job (visitor_id, job_id, saved_at) VALUES ($1, $2, NOW()) ON CONFLICT (visitor_id, job_id) DO NOTHING`,
		visitorID,
		id,
	)
	return errors.Wrap(err, "unable to save job")
}
