package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csssit/club-api/internal/model"
	"github.com/csssit/club-api/pkg/errors"
	"github.com/csssit/club-api/pkg/logger"
	"github.com/csssit/club-api/pkg/metrics"
	"github.com/csssit/club-api/pkg/worker"
)

type fakeNotificationRepo struct {
	mu              sync.Mutex
	notifications   []*model.Notification
	createManyCalls int
	failCreate      bool
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return fmt.Errorf("store unavailable")
	}
	n.ID = uuid.New()
	n.IsRead = false
	n.SentAt = time.Now()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeNotificationRepo) CreateMany(_ context.Context, notifications []*model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createManyCalls++
	if f.failCreate {
		return fmt.Errorf("store unavailable")
	}
	now := time.Now()
	for _, n := range notifications {
		n.ID = uuid.New()
		n.IsRead = false
		n.SentAt = now
	}
	f.notifications = append(f.notifications, notifications...)
	return nil
}

func (f *fakeNotificationRepo) ListForRecipient(_ context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Notification{}
	for _, n := range f.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, recipientID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return n, nil
		}
	}
	return nil, errors.NotFound("notification", nil)
}

func (f *fakeNotificationRepo) MarkManyRead(_ context.Context, recipientID uuid.UUID, scope *int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unread := []*model.Notification{}
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			unread = append(unread, n)
		}
	}
	sort.Slice(unread, func(i, j int) bool { return unread[i].SentAt.Before(unread[j].SentAt) })
	if scope != nil && len(unread) > *scope {
		unread = unread[:*scope]
	}
	for _, n := range unread {
		n.IsRead = true
	}
	return int64(len(unread)), nil
}

func (f *fakeNotificationRepo) countFor(recipientID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			count++
		}
	}
	return count
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
	calls int
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.calls++
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, errors.NotFound("user", nil)
}

type publishedMessage struct {
	group   string
	message interface{}
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
	fail      bool
}

func (f *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("transport down")
	}
	f.published = append(f.published, publishedMessage{group: channel, message: message})
	return nil
}

func (f *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage{}, f.published...)
}

type fakeSigner struct {
	calls int
}

func (f *fakeSigner) SignImageURL(publicID string) string {
	f.calls++
	return "https://media.test/signed/" + publicID
}

type fixture struct {
	repo    *fakeNotificationRepo
	users   *fakeUserRepo
	broker  *fakeBroker
	signer  *fakeSigner
	pool    *worker.Pool
	metrics *metrics.Metrics
	svc     Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    &fakeNotificationRepo{},
		users:   &fakeUserRepo{users: map[uuid.UUID]*model.User{}},
		broker:  &fakeBroker{},
		signer:  &fakeSigner{},
		pool:    worker.NewPool(2, 16),
		metrics: metrics.NewTestMetrics(),
	}
	f.svc = NewService(f.repo, f.users, f.broker, f.signer, f.pool, logger.Nop(), f.metrics)
	return f
}

// drain waits for queued publishes so assertions see them.
func (f *fixture) drain() {
	f.pool.Stop()
}

func TestNotifyOnePersistsWithDefaults(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	n, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{})
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, recipient, n.RecipientID)
	assert.False(t, n.IsRead)
	assert.False(t, n.SentAt.IsZero())
	assert.Equal(t, model.NotificationCodeInfo, n.Code)

	f.drain()
	msgs := f.broker.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user_"+recipient.String(), msgs[0].group)

	push, ok := msgs[0].message.(*model.PushMessage)
	require.True(t, ok)
	assert.Equal(t, n.ID, push.ID)
	assert.Equal(t, "Hi", push.Title)
	assert.Equal(t, "desc", push.Message)
	assert.False(t, push.IsRead)
}

func TestNotifyRecordsPersistenceLatency(t *testing.T) {
	f := newFixture()
	defer f.drain()

	_, err := f.svc.NotifyOne(context.Background(), uuid.New(), "Hi", "desc", Options{})
	require.NoError(t, err)

	_, err = f.svc.NotifyMany(context.Background(), []uuid.UUID{uuid.New(), uuid.New()}, "Hi", "desc", Options{})
	require.NoError(t, err)

	// One series per store operation: create and create_many.
	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics.DatabaseLatency))
}

func TestNotifyOneValidation(t *testing.T) {
	f := newFixture()
	defer f.drain()

	_, err := f.svc.NotifyOne(context.Background(), uuid.Nil, "Hi", "desc", Options{})
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.NotifyOne(context.Background(), uuid.New(), "", "desc", Options{})
	assert.True(t, errors.IsValidation(err))
}

func TestNotifyOneSuppressesSelfNotification(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	n, err := f.svc.NotifyOne(context.Background(), recipient, "x", "y", Options{ActorID: &recipient})
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, 0, f.repo.countFor(recipient))

	f.drain()
	assert.Empty(t, f.broker.messages())
}

func TestNotifyOneCoercesUnknownCode(t *testing.T) {
	f := newFixture()
	defer f.drain()

	n, err := f.svc.NotifyOne(context.Background(), uuid.New(), "Hi", "desc", Options{Code: "shouting"})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationCodeInfo, n.Code)

	n, err = f.svc.NotifyOne(context.Background(), uuid.New(), "Hi", "desc", Options{Code: model.NotificationCodeWarning})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationCodeWarning, n.Code)
}

func TestNotifyOneDeliveryFailureStillPersists(t *testing.T) {
	f := newFixture()
	f.broker.fail = true
	recipient := uuid.New()

	n, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{})
	require.NoError(t, err)
	require.NotNil(t, n)

	f.drain()
	assert.Equal(t, 1, f.repo.countFor(recipient))
}

func TestNotifyOneEnrichesActor(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()
	actorID := uuid.New()
	picID := "users/profiles/abc"
	f.users.users[actorID] = &model.User{
		ID:           actorID,
		Name:         "Dana",
		Email:        "dana@club.test",
		ProfilePicID: &picID,
	}

	_, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{ActorID: &actorID})
	require.NoError(t, err)

	f.drain()
	msgs := f.broker.messages()
	require.Len(t, msgs, 1)
	push := msgs[0].message.(*model.PushMessage)
	require.NotNil(t, push.Actor)
	assert.Equal(t, "Dana", push.Actor.Name)
	assert.Equal(t, "https://media.test/signed/"+picID, push.Actor.AvatarURL)
}

func TestNotifyOneDeletedActorDegradesToNoProjection(t *testing.T) {
	f := newFixture()
	actorID := uuid.New() // not in the user repo

	n, err := f.svc.NotifyOne(context.Background(), uuid.New(), "Hi", "desc", Options{ActorID: &actorID})
	require.NoError(t, err)
	require.NotNil(t, n)

	f.drain()
	msgs := f.broker.messages()
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].message.(*model.PushMessage).Actor)
}

func TestNotifyManyExcludesActorAndPreservesOrder(t *testing.T) {
	f := newFixture()
	r1, r2, r3 := uuid.New(), uuid.New(), uuid.New()
	actor := r2

	result, err := f.svc.NotifyMany(context.Background(), []uuid.UUID{r1, r2, r3}, "Hi", "desc", Options{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, r1, result[0].RecipientID)
	assert.Equal(t, r3, result[1].RecipientID)
	assert.Equal(t, 0, f.repo.countFor(r2))
	assert.Equal(t, 1, f.repo.createManyCalls)

	for _, n := range result {
		assert.Equal(t, "Hi", n.Title)
		assert.Equal(t, "desc", n.Description)
	}

	f.drain()
	assert.Len(t, f.broker.messages(), 2)
}

func TestNotifyManySkipsNilRecipients(t *testing.T) {
	f := newFixture()
	defer f.drain()
	r1 := uuid.New()

	result, err := f.svc.NotifyMany(context.Background(), []uuid.UUID{uuid.Nil, r1}, "Hi", "desc", Options{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, r1, result[0].RecipientID)
}

func TestNotifyManyEnrichesActorOnce(t *testing.T) {
	f := newFixture()
	actorID := uuid.New()
	f.users.users[actorID] = &model.User{ID: actorID, Name: "Dana"}

	_, err := f.svc.NotifyMany(context.Background(),
		[]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}, "Hi", "desc", Options{ActorID: &actorID})
	require.NoError(t, err)

	f.drain()
	assert.Equal(t, 1, f.users.calls)
	assert.Len(t, f.broker.messages(), 3)
}

func TestNotifyManyEmptyAfterFiltering(t *testing.T) {
	f := newFixture()
	defer f.drain()
	actor := uuid.New()

	result, err := f.svc.NotifyMany(context.Background(), []uuid.UUID{actor}, "Hi", "desc", Options{ActorID: &actor})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, 0, f.repo.createManyCalls)
}

func TestNotifyManyOneDeliveryFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture()
	r1, r2 := uuid.New(), uuid.New()

	// All transport failures are contained; both rows still land.
	f.broker.fail = true
	result, err := f.svc.NotifyMany(context.Background(), []uuid.UUID{r1, r2}, "Hi", "desc", Options{})
	require.NoError(t, err)
	assert.Len(t, result, 2)

	f.drain()
	assert.Equal(t, 1, f.repo.countFor(r1))
	assert.Equal(t, 1, f.repo.countFor(r2))
}

func TestLiveUpdateDoesNotPersist(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	err := f.svc.LiveUpdate(context.Background(), recipient, map[string]interface{}{"attendance_open": true})
	require.NoError(t, err)

	f.drain()
	assert.Equal(t, 0, f.repo.countFor(recipient))

	msgs := f.broker.messages()
	require.Len(t, msgs, 1)
	live, ok := msgs[0].message.(model.LiveMessage)
	require.True(t, ok)
	assert.Equal(t, true, live["live_update"])
	assert.Equal(t, true, live["attendance_open"])
}

func TestLiveUpdateRequiresRecipient(t *testing.T) {
	f := newFixture()
	defer f.drain()

	err := f.svc.LiveUpdate(context.Background(), uuid.Nil, map[string]interface{}{})
	assert.True(t, errors.IsValidation(err))
}

func TestScenarioSingleNotification(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	_, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{})
	require.NoError(t, err)
	f.drain()

	assert.Equal(t, 1, f.repo.countFor(recipient))
	count, err := f.repo.CountUnread(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScenarioMarkReadScope(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	for i := 0; i < 10; i++ {
		_, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{})
		require.NoError(t, err)
	}
	f.drain()

	scope := 3
	affected, err := f.repo.MarkManyRead(context.Background(), recipient, &scope)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	count, err := f.repo.CountUnread(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture()
	recipient := uuid.New()

	n, err := f.svc.NotifyOne(context.Background(), recipient, "Hi", "desc", Options{})
	require.NoError(t, err)
	f.drain()

	first, err := f.repo.MarkRead(context.Background(), n.ID, recipient)
	require.NoError(t, err)
	assert.True(t, first.IsRead)

	second, err := f.repo.MarkRead(context.Background(), n.ID, recipient)
	require.NoError(t, err)
	assert.True(t, second.IsRead)
}
