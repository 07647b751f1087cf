// Package service holds the domain rules of the chat application. Every operation
// acting on behalf of a user takes that user's session explicitly.
package service

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"social-chat/internal/models"
	"social-chat/internal/observability"
)

const (
	summaryMaxRunes   = 50
	messageMaxRunes   = 4000
	maxSanitizePasses = 4
)

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventEmitter publishes domain events. Implementations never fail the caller.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, userID string, payload any)
}

// Broadcaster pushes realtime events to connected clients.
type Broadcaster interface {
	BroadcastChatEvent(chatID string, event models.ChatEvent)
	BroadcastUserEvent(userID string, event models.NotificationEvent)
}

// PresenceStore tracks which users hold an open realtime connection.
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// Notifier writes notification records.
type Notifier interface {
	Create(ctx context.Context, req CreateNotificationRequest) (models.Notification, error)
}

// FanOutFailure names a recipient whose notification could not be written.
type FanOutFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// FanOutReport is the outcome of the best-effort notification writes of one operation.
type FanOutReport struct {
	Delivered []string        `json:"delivered"`
	Failed    []FanOutFailure `json:"failed"`
}

func newFanOutReport() FanOutReport {
	return FanOutReport{Delivered: []string{}, Failed: []FanOutFailure{}}
}

// OK reports whether every notification was written.
func (r FanOutReport) OK() bool {
	return len(r.Failed) == 0
}

// fanOut writes each notification independently. Failures are logged and reported,
// never returned.
func fanOut(ctx context.Context, notifier Notifier, logger zerolog.Logger, source string, reqs ...CreateNotificationRequest) FanOutReport {
	report := newFanOutReport()
	if notifier == nil {
		return report
	}
	for _, req := range reqs {
		if _, err := notifier.Create(ctx, req); err != nil {
			logger.Warn().Err(err).Str("user_id", req.UserID).Str("type", string(req.Type)).Msg("notification write failed")
			observability.IncFanOut(source, "failed")
			report.Failed = append(report.Failed, FanOutFailure{UserID: req.UserID, Error: "notification write failed"})
			continue
		}
		observability.IncFanOut(source, "delivered")
		report.Delivered = append(report.Delivered, req.UserID)
	}
	return report
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, string, any) {}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastChatEvent(string, models.ChatEvent)         {}
func (noopBroadcaster) BroadcastUserEvent(string, models.NotificationEvent) {}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func newID() string {
	return uuid.NewString()
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// displayNameFor falls back to the email local part, then to the id.
func displayNameFor(p models.UserProfile) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if local := emailLocalPart(p.Email); local != "" {
		return local
	}
	return p.ID
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// sanitizeText strips markup, entity-encoded markup included, and returns plain
// text that sanitizes to itself. Text that does not settle within
// maxSanitizePasses is dropped.
func sanitizeText(policy *bluemonday.Policy, s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		clean := html.UnescapeString(policy.Sanitize(html.UnescapeString(s)))
		if clean == s {
			return strings.TrimSpace(s)
		}
		s = clean
	}
	return ""
}
