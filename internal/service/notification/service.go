package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csssit/club-api/internal/model"
	"github.com/csssit/club-api/internal/realtime"
	"github.com/csssit/club-api/internal/repository"
	"github.com/csssit/club-api/pkg/errors"
	"github.com/csssit/club-api/pkg/media"
	"github.com/csssit/club-api/pkg/messaging"
	"github.com/csssit/club-api/pkg/metrics"
	"github.com/csssit/club-api/pkg/worker"
)

// Options on a single notify call.
type Options struct {
	Code model.NotificationCode
	// ActorID is the user who caused the event. A notification is never
	// addressed to its own actor.
	ActorID *uuid.UUID
	URL     string
	// IsPush asks receiving clients to surface an OS-level push.
	IsPush bool
}

// Service is the only contract the rest of the system needs for
// notifications: persist first, then attempt best-effort live delivery.
// Once the precondition checks pass, callers always observe success;
// durability is the only promise made, delivery is not.
type Service interface {
	NotifyOne(ctx context.Context, recipientID uuid.UUID, title, description string, opts Options) (*model.Notification, error)
	NotifyMany(ctx context.Context, recipientIDs []uuid.UUID, title, description string, opts Options) ([]*model.Notification, error)
	LiveUpdate(ctx context.Context, recipientID uuid.UUID, payload map[string]interface{}) error
}

type service struct {
	repo    repository.NotificationRepository
	users   repository.UserRepository
	broker  messaging.Broker
	signer  media.Signer
	pool    *worker.Pool
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	broker messaging.Broker,
	signer media.Signer,
	pool *worker.Pool,
	logger zerolog.Logger,
	m *metrics.Metrics,
) Service {
	return &service{
		repo:    repo,
		users:   users,
		broker:  broker,
		signer:  signer,
		pool:    pool,
		logger:  logger,
		metrics: m,
	}
}

func (s *service) NotifyOne(ctx context.Context, recipientID uuid.UUID, title, description string, opts Options) (*model.Notification, error) {
	if err := validate(recipientID, title); err != nil {
		return nil, err
	}

	// Self-notifications are suppressed, not persisted, not published.
	if opts.ActorID != nil && *opts.ActorID == recipientID {
		return nil, nil
	}

	actor := s.enrichActor(ctx, opts.ActorID)

	n := &model.Notification{
		RecipientID: recipientID,
		ActorID:     opts.ActorID,
		Title:       title,
		Description: description,
		Code:        model.NormalizeCode(opts.Code),
		URL:         opts.URL,
	}

	// Durability checkpoint: after this returns, the notification exists
	// regardless of what happens to delivery.
	start := time.Now()
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}
	s.metrics.DatabaseLatency.WithLabelValues("create").Observe(time.Since(start).Seconds())
	s.metrics.NotificationsCreated.Inc()

	s.dispatch(realtime.GroupKeyFor(recipientID), pushMessage(n, actor, opts.IsPush))

	return n, nil
}

func (s *service) NotifyMany(ctx context.Context, recipientIDs []uuid.UUID, title, description string, opts Options) ([]*model.Notification, error) {
	if title == "" {
		return nil, errors.Validation("title is required")
	}

	code := model.NormalizeCode(opts.Code)

	// Build the insert set, excluding the actor and zero-valued recipients
	// while keeping caller order so results zip back to inputs.
	notifications := make([]*model.Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		if recipientID == uuid.Nil {
			continue
		}
		if opts.ActorID != nil && *opts.ActorID == recipientID {
			continue
		}
		notifications = append(notifications, &model.Notification{
			RecipientID: recipientID,
			ActorID:     opts.ActorID,
			Title:       title,
			Description: description,
			Code:        code,
			URL:         opts.URL,
		})
	}

	if len(notifications) == 0 {
		return notifications, nil
	}

	// One durability checkpoint for the whole batch.
	start := time.Now()
	if err := s.repo.CreateMany(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to persist notifications: %w", err)
	}
	s.metrics.DatabaseLatency.WithLabelValues("create_many").Observe(time.Since(start).Seconds())
	s.metrics.NotificationsCreated.Add(float64(len(notifications)))

	// Enrich once, reuse for every publish.
	actor := s.enrichActor(ctx, opts.ActorID)

	for _, n := range notifications {
		s.dispatch(realtime.GroupKeyFor(n.RecipientID), pushMessage(n, actor, opts.IsPush))
	}

	return notifications, nil
}

func (s *service) LiveUpdate(ctx context.Context, recipientID uuid.UUID, payload map[string]interface{}) error {
	if recipientID == uuid.Nil {
		return errors.Validation("recipient is required")
	}

	s.dispatch(realtime.GroupKeyFor(recipientID), model.NewLiveMessage(payload))
	return nil
}

// dispatch hands a best-effort publish to the worker pool. Failures are
// logged and contained; they never reach the caller or unwind the persisted
// state.
func (s *service) dispatch(group string, message interface{}) {
	s.pool.Submit(func() {
		if err := s.broker.Publish(context.Background(), group, message); err != nil {
			s.metrics.PublishesTotal.WithLabelValues(metrics.PublishError).Inc()
			delivery := errors.Delivery(group, err)
			s.logger.Error().Err(delivery).Str("group", group).Msg("best-effort delivery failed")
		}
	})
}

// enrichActor builds the actor projection shared by the stored record's
// response and every live push. A missing or since-deleted actor degrades to
// no projection.
func (s *service) enrichActor(ctx context.Context, actorID *uuid.UUID) *model.Actor {
	if actorID == nil || *actorID == uuid.Nil {
		return nil
	}

	user, err := s.users.Get(ctx, *actorID)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("actor_id", actorID.String()).Msg("failed to load actor for enrichment")
		}
		return nil
	}

	actor := &model.Actor{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
	if user.ProfilePicID != nil {
		actor.AvatarURL = s.signer.SignImageURL(*user.ProfilePicID)
	}

	return actor
}

func pushMessage(n *model.Notification, actor *model.Actor, isPush bool) *model.PushMessage {
	return &model.PushMessage{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Description,
		Code:        n.Code,
		URL:         n.URL,
		IsRead:      n.IsRead,
		IsPushNotif: isPush,
		Actor:       actor,
		SentAt:      n.SentAt,
	}
}

func validate(recipientID uuid.UUID, title string) error {
	if recipientID == uuid.Nil {
		return errors.Validation("recipient is required")
	}
	if title == "" {
		return errors.Validation("title is required")
	}
	return nil
}
