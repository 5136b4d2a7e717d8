package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/csssit/club-api/internal/model"
)

// All repository interfaces in one file
type (
	// NotificationRepository is the durable notification store.
	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		// CreateMany inserts the whole batch in one transaction; either all
		// rows land or none do, and the slice keeps its input order.
		CreateMany(ctx context.Context, notifications []*model.Notification) error
		ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error)
		CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
		// MarkRead is idempotent and scoped to the recipient; marking an
		// already-read notification succeeds without changing anything.
		MarkRead(ctx context.Context, id, recipientID uuid.UUID) (*model.Notification, error)
		// MarkManyRead marks all unread when scope is nil, otherwise at most
		// *scope of the recipient's oldest unread. Returns rows changed.
		MarkManyRead(ctx context.Context, recipientID uuid.UUID, scope *int) (int64, error)
	}

	// UserRepository reads the users this subsystem references; writes are
	// owned by the account-management collaborator.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}
)
