package session

import (
	"net/http"
	"strings"
	"sync"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

func (t Theme) Toggled() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeReader is the read side handed to rendering code.
type ThemeReader interface {
	Current(r *http.Request) Theme
}

// Themes holds the site default and each browser's preference. Build it once
// at startup with NewThemes.
type Themes struct {
	m   *Manager
	def Theme

	mu   sync.Mutex
	subs []func(Theme)
}

func NewThemes(m *Manager, def Theme) *Themes {
	return &Themes{m: m, def: def}
}

// Current is the browser's theme, or the site default.
func (t *Themes) Current(r *http.Request) Theme {
	sess := t.m.get(r)
	if v, ok := sess.Values[keyTheme].(string); ok && v != "" {
		return ParseTheme(v)
	}
	return t.def
}

// Toggle flips the browser's theme, persists it and notifies subscribers.
func (t *Themes) Toggle(w http.ResponseWriter, r *http.Request) (Theme, error) {
	next := t.Current(r).Toggled()
	sess := t.m.get(r)
	sess.Values[keyTheme] = string(next)
	if err := sess.Save(r, w); err != nil {
		return t.Current(r), err
	}
	t.mu.Lock()
	subs := append([]func(Theme){}, t.subs...)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

// Subscribe registers fn to run after every toggle.
func (t *Themes) Subscribe(fn func(Theme)) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}
