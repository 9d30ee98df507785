package savedjobs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/sessions"
	"github.com/jobhack/web/internal/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const cookieKey = "saved"

// ErrCookieFull is returned when the saved set no longer fits in the signed
// session cookie. The set is left as it was.
var ErrCookieFull = errors.New("saved jobs cookie is full")

// NewCookieLocal keeps the saved set in the browser's signed session cookie,
// so it survives reloads without any server side state.
func NewCookieLocal(store sessions.Store, w http.ResponseWriter, r *http.Request, logger zerolog.Logger) Local {
	return &cookieLocal{store: store, w: w, r: r, logger: logger}
}

type cookieLocal struct {
	mu     sync.Mutex
	store  sessions.Store
	w      http.ResponseWriter
	r      *http.Request
	logger zerolog.Logger
}

func (c *cookieLocal) load() (*sessions.Session, Set) {
	sess, err := c.store.Get(c.r, session.CookieName)
	if err != nil {
		c.logger.Warn().Err(err).Msg("saved jobs cookie unreadable")
		return sess, Set{}
	}
	raw, _ := sess.Values[cookieKey].(string)
	return sess, decodeIDs(raw)
}

func (c *cookieLocal) IsSaved(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, set := c.load()
	return set.Has(id)
}

func (c *cookieLocal) Saved() Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, set := c.load()
	return set
}

func (c *cookieLocal) Toggle(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, set := c.load()
	if sess == nil {
		return nil
	}
	return c.write(sess, set, id, !set.Has(id))
}

// Put is what the listing forms use: each carries the state it wants, so
// requests sent from the same page converge instead of cancelling out.
func (c *cookieLocal) Put(id int, saved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, set := c.load()
	if sess == nil {
		return nil
	}
	if set.Has(id) == saved {
		return nil
	}
	return c.write(sess, set, id, saved)
}

func (c *cookieLocal) write(sess *sessions.Session, set Set, id int, saved bool) error {
	if saved {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
	prev, had := sess.Values[cookieKey]
	sess.Values[cookieKey] = encodeIDs(set)
	if err := sess.Save(c.r, c.w); err != nil {
		if had {
			sess.Values[cookieKey] = prev
		} else {
			delete(sess.Values, cookieKey)
		}
		c.logger.Warn().Err(err).Int("job_id", id).Int("saved_count", len(set)).Msg("unable to persist saved jobs cookie")
		return errors.Wrap(ErrCookieFull, err.Error())
	}
	return nil
}

func encodeIDs(s Set) string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func decodeIDs(raw string) Set {
	set := Set{}
	for _, p := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
