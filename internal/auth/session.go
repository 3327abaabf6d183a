package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/models"
)

// DefaultCookieName is the cookie that carries the signed session.
const DefaultCookieName = "teambuilder_session"

// UserFinder resolves a bound user id to an account.
type UserFinder interface {
	GetUserByID(ctx context.Context, id int64) (models.User, error)
}

// Options configures a Manager.
type Options struct {
	Secret     []byte
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Manager issues and reads signed session cookies.
type Manager struct {
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	users      UserFinder
	now        func() time.Time
}

// NewManager creates a session manager. The secret must not be empty.
func NewManager(opts Options, users UserFinder) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:     opts.Secret,
		cookieName: opts.CookieName,
		maxAge:     opts.MaxAge,
		secure:     opts.Secure,
		users:      users,
		now:        time.Now,
	}, nil
}

// sessionClaims is the signed payload of the session cookie.
type sessionClaims struct {
	UserID  *int64   `json:"uid,omitempty"`
	Flashes []string `json:"flashes,omitempty"`
	jwt.RegisteredClaims
}

// Session is the per-request view of the cookie. It is either Anonymous or
// bound to exactly one user id.
type Session struct {
	userID  int64
	bound   bool
	flashes []string
	dirty   bool
}

// UserID returns the bound user id and whether the session is authenticated.
func (s *Session) UserID() (int64, bool) {
	return s.userID, s.bound
}

// AddFlash queues a one-shot message for the next rendered page.
func (s *Session) AddFlash(msg string) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// Flashes returns and clears the pending messages.
func (s *Session) Flashes() []string {
	if len(s.flashes) == 0 {
		return []string{}
	}
	out := s.flashes
	s.flashes = nil
	s.dirty = true
	return out
}

func (s *Session) unbind() {
	if s.bound {
		s.userID, s.bound = 0, false
		s.dirty = true
	}
}

// Load reads the session cookie. A missing, tampered, or expired cookie
// yields an Anonymous session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding invalid session cookie")
		// Dirty so the bad cookie is cleared on the next Save.
		return &Session{dirty: true}
	}

	s := &Session{flashes: claims.Flashes}
	if claims.UserID != nil {
		s.userID, s.bound = *claims.UserID, true
	}
	return s
}

// Save writes the session back to the client when it changed. An Anonymous
// session with nothing pending removes the cookie.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	if !s.dirty {
		return nil
	}

	if !s.bound && len(s.flashes) == 0 {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
		s.dirty = false
		return nil
	}

	now := m.now()
	claims := sessionClaims{
		Flashes: s.flashes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}
	if s.bound {
		id := s.userID
		claims.UserID = &id
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.maxAge),
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.dirty = false
	return nil
}

// Login binds the session to user, replacing any previous identity.
func (m *Manager) Login(s *Session, user models.User) {
	s.userID, s.bound = user.ID, true
	s.dirty = true
}

// Logout unbinds the session. It is a no-op on an Anonymous session.
func (m *Manager) Logout(s *Session) {
	s.unbind()
}

// ResolveCurrentUser maps the bound id to a User. An id whose account no
// longer exists unbinds the session and resolves to nil.
func (m *Manager) ResolveCurrentUser(ctx context.Context, s *Session) (*models.User, error) {
	id, ok := s.UserID()
	if !ok {
		return nil, nil
	}

	user, err := m.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.unbind()
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Identity is the resolved requester handed to every handler.
type Identity struct {
	User    *models.User
	Session *Session
}

// IdentityHandlerFunc is an http.HandlerFunc that also receives the
// requester's identity.
type IdentityHandlerFunc func(w http.ResponseWriter, r *http.Request, id Identity)

// Handler loads and resolves the session once per request and passes the
// result to fn.
func (m *Manager) Handler(fn IdentityHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		user, err := m.ResolveCurrentUser(r.Context(), s)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve current user")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		fn(w, r, Identity{User: user, Session: s})
	}
}
