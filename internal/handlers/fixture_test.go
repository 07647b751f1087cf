package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"social-chat/internal/auth"
	"social-chat/internal/db"
	"social-chat/internal/db/dbtest"
	"social-chat/internal/handlers"
	"social-chat/internal/middleware"
	"social-chat/internal/repositories"
	"social-chat/internal/service"
)

const testSecret = "handler-secret"

type apiFixture struct {
	router        *gin.Engine
	issuer        *auth.Issuer
	profiles      *service.ProfileService
	friendships   *service.FriendshipService
	chats         *service.ChatService
	notifications *service.NotificationService
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	conn := dbtest.Open(t)
	log := zerolog.Nop()
	validate := validator.New()
	tx := db.NewTxManager(conn)
	profileRepo := repositories.NewProfileRepo(conn)

	f := &apiFixture{issuer: auth.NewIssuer(testSecret, time.Hour)}
	f.profiles = service.NewProfileService(profileRepo, nil, validate, log)
	f.notifications = service.NewNotificationService(repositories.NewNotificationRepo(conn), nil, nil, validate, log)
	f.friendships = service.NewFriendshipService(tx, repositories.NewFriendRequestRepo(conn), repositories.NewFriendshipRepo(conn), profileRepo, f.notifications, nil, validate, log)
	f.chats = service.NewChatService(service.ChatDeps{
		Tx:       tx,
		Chats:    repositories.NewChatRepo(conn),
		Messages: repositories.NewMessageRepo(conn),
		Profiles: profileRepo,
		Friends:  f.friendships,
		Notifier: f.notifications,
	}, validate, log)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers.RegisterDebugRoutes(r, f.issuer, true)
	api := r.Group("/")
	api.Use(middleware.AuthMiddleware(auth.NewVerifier(testSecret), f.profiles, log))
	handlers.NewProfileHandler(f.profiles, log).Register(api)
	handlers.NewFriendHandler(f.friendships, log).Register(api)
	handlers.NewChatHandler(f.chats, log).Register(api)
	handlers.NewNotificationHandler(f.notifications, log).Register(api)
	f.router = r
	return f
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.issuer.Issue(userID, userID+"@example.com")
	require.NoError(t, err)
	return tok
}

// do sends a request as userID (anonymous when empty) and returns the recorder.
func (f *apiFixture) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// befriend runs the request/accept flow over HTTP.
func (f *apiFixture) befriend(t *testing.T, from, to string) {
	t.Helper()
	f.do(t, to, http.MethodGet, "/me", nil)
	rec := f.do(t, from, http.MethodPost, "/friend-requests", map[string]string{"to_user": to})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[service.FriendRequestResult](t, rec)

	rec = f.do(t, to, http.MethodPost, "/friend-requests/"+sent.Request.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
