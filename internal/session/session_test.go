package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *session.Manager {
	return session.NewManager(sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")))
}

// carry returns a request bearing the last cookie written to w.
func carry(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[len(cookies)-1])
	return r
}

func TestVisitorIDIsStable(t *testing.T) {
	m := newManager()
	w := httptest.NewRecorder()
	id, err := m.VisitorID(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, id, 27)

	again, err := m.VisitorID(httptest.NewRecorder(), carry(t, w))
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestTokensRoundTrip(t *testing.T) {
	m := newManager()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	assert.False(t, m.SignedIn(r))

	w := httptest.NewRecorder()
	require.NoError(t, m.SetTokens(w, r, backend.Tokens{Access: "a.b.c", Refresh: "r.s.t"}))

	r2 := carry(t, w)
	assert.True(t, m.SignedIn(r2))
	assert.Equal(t, backend.Tokens{Access: "a.b.c", Refresh: "r.s.t"}, m.Tokens(r2))

	w2 := httptest.NewRecorder()
	require.NoError(t, m.ClearTokens(w2, r2))
	assert.False(t, m.SignedIn(carry(t, w2)))
}

func TestSaveRefreshedOnlyWhenRefreshed(t *testing.T) {
	m := newManager()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, m.SaveRefreshed(w, r, backend.Tokens{Access: "x"}))
	assert.Empty(t, w.Result().Cookies())

	w2 := httptest.NewRecorder()
	require.NoError(t, m.SaveRefreshed(w2, r, backend.Tokens{Access: "y", Refreshed: true}))
	assert.Equal(t, "y", m.Tokens(carry(t, w2)).Access)
}

func TestFlashesArePopped(t *testing.T) {
	m := newManager()
	w := httptest.NewRecorder()
	require.NoError(t, m.AddFlash(w, httptest.NewRequest(http.MethodGet, "/", nil), "Upgrade failed"))

	r := carry(t, w)
	w2 := httptest.NewRecorder()
	assert.Equal(t, []string{"Upgrade failed"}, m.Flashes(w2, r))
	assert.Empty(t, m.Flashes(httptest.NewRecorder(), carry(t, w2)))
}

func TestThemeToggle(t *testing.T) {
	m := newManager()
	themes := session.NewThemes(m, session.ThemeLight)
	var seen []session.Theme
	themes.Subscribe(func(th session.Theme) { seen = append(seen, th) })

	r := httptest.NewRequest(http.MethodPost, "/x/theme", nil)
	assert.Equal(t, session.ThemeLight, themes.Current(r))

	w := httptest.NewRecorder()
	th, err := themes.Toggle(w, r)
	require.NoError(t, err)
	assert.Equal(t, session.ThemeDark, th)
	assert.Equal(t, session.ThemeDark, themes.Current(carry(t, w)))
	assert.Equal(t, []session.Theme{session.ThemeDark}, seen)
}

func TestParseTheme(t *testing.T) {
	assert.Equal(t, session.ThemeDark, session.ParseTheme("Dark"))
	assert.Equal(t, session.ThemeLight, session.ParseTheme("neon"))
}
