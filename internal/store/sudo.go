package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQLiteSudoRepo implements SudoRepository.
type SQLiteSudoRepo struct {
	db *sqlx.DB
}

// Add records a sudo admin. It returns false when the id is already listed.
func (r *SQLiteSudoRepo) Add(ctx context.Context, admin *SudoAdmin) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sudo_admins (id, name, added_date, added_by)
		VALUES (:id, :name, :added_date, :added_by)
		ON CONFLICT(id) DO NOTHING`, admin)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remove deletes a sudo admin and returns the removed record.
func (r *SQLiteSudoRepo) Remove(ctx context.Context, id string) (*SudoAdmin, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var admin SudoAdmin
	err = tx.GetContext(ctx, &admin, `SELECT * FROM sudo_admins WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sudo_admins WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *SQLiteSudoRepo) List(ctx context.Context) ([]SudoAdmin, error) {
	var admins []SudoAdmin
	if err := r.db.SelectContext(ctx, &admins, `SELECT * FROM sudo_admins ORDER BY added_date, id`); err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *SQLiteSudoRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sudo_admins`)
	return count, err
}
