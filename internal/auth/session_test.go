package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeUsers map[int64]models.User

func (f fakeUsers) GetUserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, common.ErrNotFound
	}
	return u, nil
}

type failingUsers struct{ err error }

func (f failingUsers) GetUserByID(context.Context, int64) (models.User, error) {
	return models.User{}, f.err
}

func newTestManager(t *testing.T, users UserFinder) *Manager {
	t.Helper()
	m, err := NewManager(Options{Secret: []byte("test-secret"), MaxAge: time.Hour}, users)
	require.NoError(t, err)
	return m
}

// roundTrip saves s and returns a request carrying the resulting cookies.
func roundTrip(t *testing.T, m *Manager, s *Session) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(Options{}, fakeUsers{})
	require.Error(t, err)
}

func TestLoad_NoCookieIsAnonymous(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	_, ok := s.UserID()
	assert.False(t, ok)
	assert.Empty(t, s.Flashes())
}

func TestLoginSaveLoad_RoundTrip(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	m.Login(s, models.User{ID: 42, Username: "alice"})
	s.AddFlash("welcome")

	loaded := m.Load(roundTrip(t, m, s))
	id, ok := loaded.UserID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, []string{"welcome"}, loaded.Flashes())
	assert.Empty(t, loaded.Flashes(), "flashes are popped once")
}

func TestSave_CookieAttributes(t *testing.T) {
	m, err := NewManager(Options{Secret: []byte("k"), CookieName: "sid", MaxAge: time.Hour, Secure: true}, fakeUsers{})
	require.NoError(t, err)

	s := &Session{}
	m.Login(s, models.User{ID: 1})
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestSave_UnchangedSessionWritesNothing(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, &Session{}))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_ReplacesPreviousIdentity(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	m.Login(s, models.User{ID: 1})
	m.Login(s, models.User{ID: 2})

	id, ok := m.Load(roundTrip(t, m, s)).UserID()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestLogout(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	m.Login(s, models.User{ID: 5})
	loaded := m.Load(roundTrip(t, m, s))

	m.Logout(loaded)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, loaded))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge, "cookie is cleared")
}

func TestLogout_AnonymousIsNoop(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	m.Logout(s)
	_, ok := s.UserID()
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoad_TamperedCookieIsAnonymous(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	m.Login(s, models.User{ID: 9})
	req := roundTrip(t, m, s)
	c, err := req.Cookie(DefaultCookieName)
	require.NoError(t, err)

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: c.Value + "x"})

	loaded := m.Load(tampered)
	_, ok := loaded.UserID()
	assert.False(t, ok)
}

func TestLoad_ForeignSecretIsAnonymous(t *testing.T) {
	other, err := NewManager(Options{Secret: []byte("other-secret")}, fakeUsers{})
	require.NoError(t, err)
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	other.Login(s, models.User{ID: 9})

	_, ok := m.Load(roundTrip(t, other, s)).UserID()
	assert.False(t, ok)
}

func TestLoad_RejectsUnsignedToken(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	id := int64(1)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		UserID: &id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})

	_, ok := m.Load(req).UserID()
	assert.False(t, ok)
}

func TestLoad_ExpiredCookieIsAnonymous(t *testing.T) {
	m := newTestManager(t, fakeUsers{})
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	s := &Session{}
	m.Login(s, models.User{ID: 3})
	req := roundTrip(t, m, s)

	m.now = time.Now
	loaded := m.Load(req)
	_, ok := loaded.UserID()
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, loaded))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge, "stale cookie is cleared")
}

func TestResolveCurrentUser(t *testing.T) {
	alice := models.User{ID: 1, Username: "alice"}
	m := newTestManager(t, fakeUsers{1: alice})
	ctx := context.Background()

	anon := &Session{}
	u, err := m.ResolveCurrentUser(ctx, anon)
	require.NoError(t, err)
	assert.Nil(t, u)

	s := &Session{}
	m.Login(s, alice)
	u, err = m.ResolveCurrentUser(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Username)
}

func TestResolveCurrentUser_DeletedAccountDropsBinding(t *testing.T) {
	m := newTestManager(t, fakeUsers{})

	s := &Session{}
	m.Login(s, models.User{ID: 77})
	loaded := m.Load(roundTrip(t, m, s))

	u, err := m.ResolveCurrentUser(context.Background(), loaded)
	require.NoError(t, err)
	assert.Nil(t, u)
	_, ok := loaded.UserID()
	assert.False(t, ok)
}

func TestResolveCurrentUser_StoreFailure(t *testing.T) {
	boom := errors.New("db down")
	m := newTestManager(t, failingUsers{err: boom})

	s := &Session{}
	m.Login(s, models.User{ID: 1})
	_, err := m.ResolveCurrentUser(context.Background(), s)
	require.ErrorIs(t, err, boom)
	_, ok := s.UserID()
	assert.True(t, ok, "binding survives transient failures")
}

func TestHandler_PassesIdentity(t *testing.T) {
	alice := models.User{ID: 1, Username: "alice"}
	m := newTestManager(t, fakeUsers{1: alice})

	s := &Session{}
	m.Login(s, alice)
	req := roundTrip(t, m, s)

	var got Identity
	h := m.Handler(func(w http.ResponseWriter, r *http.Request, id Identity) {
		got = id
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got.User)
	assert.Equal(t, "alice", got.User.Username)
	require.NotNil(t, got.Session)
}

func TestHandler_StoreFailureIs500(t *testing.T) {
	m := newTestManager(t, failingUsers{err: errors.New("db down")})

	s := &Session{}
	m.Login(s, models.User{ID: 1})
	req := roundTrip(t, m, s)

	called := false
	h := m.Handler(func(http.ResponseWriter, *http.Request, Identity) { called = true })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
