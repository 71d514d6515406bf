// Package identity gives every browser an anonymous traveler id and tags
// each request with the planning session (browser tab) it belongs to.
package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/store"
	"github.com/google/uuid"
)

// Cookie and header names carrying the traveler identity.
const (
	AnonCookieName    = "trip_anon_id"
	SessionHeaderName = "X-Trip-Session-ID"

	anonIDPrefix   = "anon_"
	anonCookieTTL  = 30 * 24 * time.Hour
	lastSeenWindow = time.Minute
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Traveler is the identity attached to a request.
type Traveler struct {
	UserID   string
	Username string
	// SessionID is empty when the client did not send one; the runtime
	// then assigns a fresh id.
	SessionID string
}

type travelerKey struct{}

// NewContext returns a context carrying t.
func NewContext(ctx context.Context, t Traveler) context.Context {
	return context.WithValue(ctx, travelerKey{}, t)
}

// FromContext returns the traveler attached by Middleware.
func FromContext(ctx context.Context) (Traveler, bool) {
	t, ok := ctx.Value(travelerKey{}).(Traveler)
	return t, ok
}

// UserIDFromContext returns the traveler's user id, or "".
func UserIDFromContext(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.UserID
}

// UsernameFromContext returns the traveler's display name, or "".
func UsernameFromContext(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.Username
}

// SessionIDFromContext returns the tab session id, or "".
func SessionIDFromContext(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.SessionID
}

// WithUserID returns a context whose traveler has userID, keeping any
// session id already present. Used by non-HTTP entry points.
func WithUserID(ctx context.Context, userID string) context.Context {
	t, _ := FromContext(ctx)
	t.UserID = userID
	t.Username = usernameFor(userID)
	return NewContext(ctx, t)
}

func newAnonID() string {
	u := uuid.New()
	return anonIDPrefix + hex.EncodeToString(u[:])
}

func usernameFor(userID string) string {
	if len(userID) > len(anonIDPrefix)+8 {
		return "traveler-" + userID[len(userID)-8:]
	}
	return "traveler"
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	sid = strings.TrimSpace(sid)
	if !sessionIDPattern.MatchString(sid) {
		return ""
	}
	return sid
}

// resolver turns a request into a registered traveler.
type resolver struct {
	repo   store.Repository
	secure bool
	now    func() time.Time
}

// cookieID returns the anonymous id from a well-formed cookie. Forged or
// malformed values are ignored and a new id is issued.
func (rv *resolver) cookieID(r *http.Request) string {
	c, err := r.Cookie(AnonCookieName)
	if err != nil || !anonIDPattern.MatchString(c.Value) {
		return newAnonID()
	}
	return c.Value
}

// setCookie (re)issues the cookie so an active traveler never expires.
func (rv *resolver) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieTTL.Seconds()),
		Expires:  rv.now().Add(anonCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   rv.secure,
	})
}

// register creates the user row on first sight and bumps last_seen at most
// once per lastSeenWindow. It returns the stored username.
func (rv *resolver) register(ctx context.Context, userID string) (string, error) {
	now := rv.now()
	user, err := rv.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		user = &domain.User{
			UserID:     userID,
			Username:   usernameFor(userID),
			LastSeenAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return user.Username, rv.repo.UpsertUser(ctx, user)
	}
	if now.Sub(user.LastSeenAt) > lastSeenWindow {
		if err := rv.repo.UpdateLastSeen(ctx, userID, now); err != nil {
			return "", err
		}
	}
	return user.Username, nil
}

// Middleware attaches a Traveler to every request. Cookies are marked
// Secure outside development.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	rv := &resolver{repo: repo, secure: !isDev, now: time.Now}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := rv.cookieID(r)
			rv.setCookie(w, userID)

			username, err := rv.register(r.Context(), userID)
			if err != nil {
				slog.Error("Failed to register traveler", "user_id", userID, "error", err)
				writeIdentityError(w)
				return
			}

			ctx := NewContext(r.Context(), Traveler{
				UserID:    userID,
				Username:  username,
				SessionID: sessionIDFromRequest(r),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeIdentityError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to establish traveler identity"})
}

// RemoteIP returns the request's remote host without the port.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
