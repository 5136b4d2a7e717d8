package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/csssit/club-api/internal/model"
	"github.com/csssit/club-api/internal/repository"
	apperrors "github.com/csssit/club-api/pkg/errors"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_id, actor_id, title, description,
			code, url, is_read, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	n.ID = uuid.New()
	n.IsRead = false
	n.SentAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.ActorID,
		n.Title,
		n.Description,
		n.Code,
		n.URL,
		n.IsRead,
		n.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) CreateMany(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	now := time.Now()
	values := make([]string, 0, len(notifications))
	args := make([]interface{}, 0, len(notifications)*9)

	for i, n := range notifications {
		n.ID = uuid.New()
		n.IsRead = false
		n.SentAt = now

		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			n.ID, n.RecipientID, n.ActorID, n.Title, n.Description,
			n.Code, n.URL, n.IsRead, n.SentAt,
		)
	}

	query := `
		INSERT INTO notifications (
			id, recipient_id, actor_id, title, description,
			code, url, is_read, sent_at
		) VALUES ` + strings.Join(values, ", ")

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to bulk insert notifications: %w", err)
		}
		return nil
	})
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY sent_at DESC LIMIT $2"

	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, recipientID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND is_read = FALSE
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING *
	`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	return &n, nil
}

func (r *notificationRepository) MarkManyRead(ctx context.Context, recipientID uuid.UUID, scope *int) (int64, error) {
	var (
		result sql.Result
		err    error
	)

	if scope == nil {
		query := `
			UPDATE notifications
			SET is_read = TRUE
			WHERE recipient_id = $1 AND is_read = FALSE
		`
		result, err = r.db.ExecContext(ctx, query, recipientID)
	} else {
		// Oldest unread first, bounded batch.
		query := `
			UPDATE notifications
			SET is_read = TRUE
			WHERE id IN (
				SELECT id FROM notifications
				WHERE recipient_id = $1 AND is_read = FALSE
				ORDER BY sent_at ASC
				LIMIT $2
			)
		`
		result, err = r.db.ExecContext(ctx, query, recipientID, *scope)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}
