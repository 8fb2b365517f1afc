// Package session carries the authenticated user of a request.
//
// A Session is built once per request by the HTTP middleware from a bearer
// token and passed explicitly to the operations that need an actor. Nothing
// in the expiry engine ever reads it.
//
// Permission format:
//   - "*" full access
//   - "resource.*" every action on a resource (e.g. "lots.*")
//   - "resource.action" a single action (e.g. "lots.read")
package session

import (
	"context"
	"strings"
)

// Session is the authenticated user of a request
type Session struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether the session grants the required permission
func (s *Session) Can(required string) bool {
	if s == nil {
		return false
	}
	return HasPermission(s.Permissions, required)
}

// DisplayName returns the name to record in movements, falling back to the email
func (s *Session) DisplayName() string {
	if s == nil {
		return "system"
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// HasPermission checks if userPerms include required, honouring wildcards.
// An empty requirement is always satisfied.
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

type contextKey string

const sessionContextKey contextKey = "session"

// FromContext returns the Session attached by the middleware, or nil
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionContextKey).(*Session)
	return s
}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey, s)
}
