package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jobhack/web/internal/backend"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// CookieName is shared with the cookie backed saved-jobs store so both write
// the same signed cookie.
const CookieName = "____jh"

const (
	keyVisitor = "visitor"
	keyAccess  = "access"
	keyRefresh = "refresh"
	keyTheme   = "theme"
)

// Manager reads and writes the browser session.
type Manager struct {
	store sessions.Store
}

func NewManager(store sessions.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Store() sessions.Store {
	return m.store
}

// get never fails: an unreadable cookie yields a fresh session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	sess, err := m.store.Get(r, CookieName)
	if sess == nil || err != nil {
		if sess == nil {
			sess = sessions.NewSession(m.store, CookieName)
		}
		sess.IsNew = true
	}
	return sess
}

// VisitorID returns the browser's stable id, minting and persisting one on
// first contact.
func (m *Manager) VisitorID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := m.get(r)
	if id, ok := sess.Values[keyVisitor].(string); ok && id != "" {
		return id, nil
	}
	k, err := ksuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "unable to generate visitor id")
	}
	sess.Values[keyVisitor] = k.String()
	if err := sess.Save(r, w); err != nil {
		return "", errors.Wrap(err, "unable to save session")
	}
	return k.String(), nil
}

// Tokens returns the stored token pair. Both are empty for anonymous visitors.
func (m *Manager) Tokens(r *http.Request) backend.Tokens {
	sess := m.get(r)
	access, _ := sess.Values[keyAccess].(string)
	refresh, _ := sess.Values[keyRefresh].(string)
	return backend.Tokens{Access: access, Refresh: refresh}
}

func (m *Manager) SignedIn(r *http.Request) bool {
	return m.Tokens(r).Access != ""
}

func (m *Manager) SetTokens(w http.ResponseWriter, r *http.Request, tk backend.Tokens) error {
	sess := m.get(r)
	sess.Values[keyAccess] = tk.Access
	sess.Values[keyRefresh] = tk.Refresh
	return sess.Save(r, w)
}

// SaveRefreshed persists tk if a backend call refreshed its access token.
func (m *Manager) SaveRefreshed(w http.ResponseWriter, r *http.Request, tk backend.Tokens) error {
	if !tk.Refreshed {
		return nil
	}
	return m.SetTokens(w, r, tk)
}

func (m *Manager) ClearTokens(w http.ResponseWriter, r *http.Request) error {
	sess := m.get(r)
	delete(sess.Values, keyAccess)
	delete(sess.Values, keyRefresh)
	return sess.Save(r, w)
}

func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	sess := m.get(r)
	sess.AddFlash(msg)
	return sess.Save(r, w)
}

// Flashes pops pending flash messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	sess := m.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	sess.Save(r, w)
	return out
}
