package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLiteActionRepo implements ActionRepository.
type SQLiteActionRepo struct {
	db *sqlx.DB
}

func (r *SQLiteActionRepo) Record(ctx context.Context, action *Action) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO moderation_actions (action, chat_id, actor_id, target_id, from_state, to_state, until, reason, created_at)
		VALUES (:action, :chat_id, :actor_id, :target_id, :from_state, :to_state, :until, :reason, :created_at)`,
		action,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	action.ID = id
	return nil
}

// Recent returns the newest actions in a chat, newest first.
func (r *SQLiteActionRepo) Recent(ctx context.Context, chatID string, limit int) ([]Action, error) {
	var actions []Action
	err := r.db.SelectContext(ctx, &actions,
		`SELECT * FROM moderation_actions WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, limit,
	)
	return actions, err
}

func (r *SQLiteActionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM moderation_actions`)
	return count, err
}
