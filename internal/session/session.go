// Package session carries the authenticated identity through request handling.
// A Session is always passed explicitly into domain calls; it is never global.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoSession is returned when a context carries no authenticated identity.
var ErrNoSession = errors.New("no authenticated session")

// Session is the identity of the caller for one request or websocket connection.
type Session struct {
	UserID   string
	Email    string
	IssuedAt time.Time
}

// Valid reports whether the session identifies a user.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != ""
}

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

// WithContext attaches the session to ctx.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session stored by WithContext.
func FromContext(ctx context.Context) (Session, error) {
	if ctx == nil {
		return Session{}, ErrNoSession
	}
	s, ok := ctx.Value(sessionKey).(Session)
	if !ok || !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}
