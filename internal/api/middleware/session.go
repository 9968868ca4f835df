package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionCookie names the cookie carrying the dashboard session.
const SessionCookie = "medalyze_session"

// Sessions assigns every browser a session identifier. Results uploaded in
// one session are invisible to the others.
type Sessions struct {
	ttl    time.Duration
	secure bool
}

// NewSessions creates the session middleware. secure marks the cookie
// HTTPS-only.
func NewSessions(ttl time.Duration, secure bool) *Sessions {
	return &Sessions{ttl: ttl, secure: secure}
}

// Attach reads the session cookie, issuing a new one when it is missing or
// malformed, and stores the identifier in the request context.
func (s *Sessions) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionFromCookie(r)
		if !ok {
			id = uuid.New()
		}

		// Refreshed on every request so an active session does not expire.
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id.String(),
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

func sessionFromCookie(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
