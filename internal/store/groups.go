package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLiteGroupRepo implements GroupRepository.
type SQLiteGroupRepo struct {
	db *sqlx.DB
}

// Upsert inserts a group or refreshes its title and activity. first_joined is
// only written on insert.
func (r *SQLiteGroupRepo) Upsert(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (id, title, first_joined, last_active, needs_verification, notifications_disabled)
		VALUES (:id, :title, :first_joined, :last_active, :needs_verification, :notifications_disabled)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE groups.title END,
			last_active = excluded.last_active
	`
	_, err := r.db.NamedExecContext(ctx, query, group)
	return err
}

func (r *SQLiteGroupRepo) Get(ctx context.Context, id string) (*Group, error) {
	var group Group
	err := r.db.GetContext(ctx, &group, `SELECT * FROM groups WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *SQLiteGroupRepo) List(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := r.db.SelectContext(ctx, &groups, `SELECT * FROM groups ORDER BY first_joined`); err != nil {
		return nil, err
	}
	return groups, nil
}

// MarkVerified records a successful membership probe.
func (r *SQLiteGroupRepo) MarkVerified(ctx context.Context, id, title string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE groups
		SET needs_verification = FALSE,
			verified_at = ?,
			title = CASE WHEN ? <> '' THEN ? ELSE title END
		WHERE id = ?`,
		at, title, title, id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *SQLiteGroupRepo) SetNotificationsDisabled(ctx context.Context, id string, disabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET notifications_disabled = ? WHERE id = ?`, disabled, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a group and reports whether a record existed.
func (r *SQLiteGroupRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteGroupRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM groups`)
	return count, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
