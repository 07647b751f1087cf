package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"social-chat/internal/db"
	"social-chat/internal/db/dbtest"
	"social-chat/internal/models"
	"social-chat/internal/repositories"
	"social-chat/internal/service"
	"social-chat/internal/session"
)

type emitted struct {
	eventType string
	userID    string
	payload   any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingEmitter) Emit(_ context.Context, eventType, userID string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{eventType: eventType, userID: userID, payload: payload})
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	chatEvents map[string][]models.ChatEvent
	userEvents map[string][]models.NotificationEvent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		chatEvents: map[string][]models.ChatEvent{},
		userEvents: map[string][]models.NotificationEvent{},
	}
}

func (r *recordingBroadcaster) BroadcastChatEvent(chatID string, event models.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatEvents[chatID] = append(r.chatEvents[chatID], event)
}

func (r *recordingBroadcaster) BroadcastUserEvent(userID string, event models.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userEvents[userID] = append(r.userEvents[userID], event)
}

// failingNotifier fails for the listed recipients and delegates otherwise.
type failingNotifier struct {
	next    service.Notifier
	failFor map[string]bool
}

func (f failingNotifier) Create(ctx context.Context, req service.CreateNotificationRequest) (models.Notification, error) {
	if f.failFor[req.UserID] {
		return models.Notification{}, errNotifierDown
	}
	return f.next.Create(ctx, req)
}

var errNotifierDown = errors.New("notification store unavailable")

type fixture struct {
	conn          *sqlx.DB
	tx            *db.TxManager
	profileRepo   *repositories.ProfileRepo
	requestRepo   *repositories.FriendRequestRepo
	friendRepo    *repositories.FriendshipRepo
	chatRepo      *repositories.ChatRepo
	messageRepo   *repositories.MessageRepo
	notifyRepo    *repositories.NotificationRepo
	emitter       *recordingEmitter
	broadcaster   *recordingBroadcaster
	validate      *validator.Validate
	profiles      *service.ProfileService
	notifications *service.NotificationService
	friendships   *service.FriendshipService
	chats         *service.ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:        conn,
		tx:          db.NewTxManager(conn),
		profileRepo: repositories.NewProfileRepo(conn),
		requestRepo: repositories.NewFriendRequestRepo(conn),
		friendRepo:  repositories.NewFriendshipRepo(conn),
		chatRepo:    repositories.NewChatRepo(conn),
		messageRepo: repositories.NewMessageRepo(conn),
		notifyRepo:  repositories.NewNotificationRepo(conn),
		emitter:     &recordingEmitter{},
		broadcaster: newRecordingBroadcaster(),
		validate:    validator.New(),
	}
	log := zerolog.Nop()
	f.profiles = service.NewProfileService(f.profileRepo, nil, f.validate, log)
	f.notifications = service.NewNotificationService(f.notifyRepo, f.emitter, f.broadcaster, f.validate, log)
	f.friendships = service.NewFriendshipService(f.tx, f.requestRepo, f.friendRepo, f.profileRepo, f.notifications, f.emitter, f.validate, log)
	f.chats = f.chatService(f.notifications)
	return f
}

func (f *fixture) chatService(notifier service.Notifier) *service.ChatService {
	return service.NewChatService(service.ChatDeps{
		Tx:          f.tx,
		Chats:       f.chatRepo,
		Messages:    f.messageRepo,
		Profiles:    f.profileRepo,
		Friends:     f.friendships,
		Notifier:    notifier,
		Events:      f.emitter,
		Broadcaster: f.broadcaster,
	}, f.validate, zerolog.Nop())
}

// user ensures a profile and returns the caller's session.
func (f *fixture) user(t *testing.T, id string) session.Session {
	t.Helper()
	sess := session.Session{UserID: id, Email: id + "@x.com"}
	_, err := f.profiles.Ensure(context.Background(), sess)
	require.NoError(t, err)
	return sess
}

func (f *fixture) befriend(t *testing.T, a, b session.Session) {
	t.Helper()
	sent, err := f.friendships.SendRequest(context.Background(), a, b.UserID, "")
	require.NoError(t, err)
	_, err = f.friendships.AcceptRequest(context.Background(), b, sent.Request.ID)
	require.NoError(t, err)
}
