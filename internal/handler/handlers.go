package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/savedjobs"
	"github.com/jobhack/web/internal/server"
	"github.com/jobhack/web/internal/session"
	"github.com/jobhack/web/internal/view"
)

// SavedJobs resolves the visitor's saved set for one request.
type SavedJobs func(w http.ResponseWriter, r *http.Request) savedjobs.Local

// CookieSavedJobs keeps saved ids in the session cookie.
func CookieSavedJobs(svr server.Server) SavedJobs {
	return func(w http.ResponseWriter, r *http.Request) savedjobs.Local {
		return savedjobs.NewCookieLocal(svr.Sessions.Store(), w, r, svr.Logger())
	}
}

// StoreSavedJobs keeps saved ids in store, keyed by visitor id.
func StoreSavedJobs(svr server.Server, store savedjobs.Store) SavedJobs {
	return func(w http.ResponseWriter, r *http.Request) savedjobs.Local {
		visitorID, err := svr.Sessions.VisitorID(w, r)
		if err != nil {
			svr.Log(err, "unable to resolve visitor for saved jobs")
			return savedjobs.Bind(r.Context(), savedjobs.NewMemoryStore(), "", svr.Logger())
		}
		return savedjobs.Bind(r.Context(), store, visitorID, svr.Logger())
	}
}

func viewSession(svr server.Server, reg *view.Registry, w http.ResponseWriter, r *http.Request) (*view.Session, bool) {
	visitorID, err := svr.Sessions.VisitorID(w, r)
	if err != nil {
		svr.Log(err, "unable to resolve visitor")
		svr.RenderError(w, r, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.")
		return nil, false
	}
	return reg.Get(visitorID), true
}

func tokens(svr server.Server, r *http.Request) *backend.Tokens {
	tk := svr.Sessions.Tokens(r)
	return &tk
}

// keepTokens persists an access token refreshed during a backend call.
func keepTokens(svr server.Server, w http.ResponseWriter, r *http.Request, tk *backend.Tokens) {
	if err := svr.Sessions.SaveRefreshed(w, r, *tk); err != nil {
		svr.Log(err, "unable to persist refreshed token")
	}
}

// returnTo redirects back after an in-page action. The listing then shows
// the results it already had.
func returnTo(svr server.Server, reg *view.Registry, w http.ResponseWriter, r *http.Request) {
	if visitorID, err := svr.Sessions.VisitorID(w, r); err == nil {
		reg.Get(visitorID).MarkReturn()
	}
	svr.Redirect(w, r, http.StatusSeeOther, back(r, "/"))
}

// back is the same-site page the request came from, or fallback.
func back(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return fallback
	}
	if ref.Host != "" && ref.Host != r.Host {
		return fallback
	}
	return ref.RequestURI()
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func HealthHandler(svr server.Server, api *backend.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := map[string]interface{}{
			"status":  "ok",
			"backend": "ok",
		}
		if err := api.Health(r.Context()); err != nil {
			logger := svr.Logger()
			logger.Warn().Err(err).Msg("backend health check failed")
			res["backend"] = "unreachable"
		}
		svr.JSON(w, http.StatusOK, res)
	}
}

func ToggleThemeHandler(svr server.Server, reg *view.Registry, themes *session.Themes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theme, err := themes.Toggle(w, r)
		if err != nil {
			svr.Log(err, "unable to toggle theme")
		}
		if wantsJSON(r) {
			svr.JSON(w, http.StatusOK, map[string]string{"theme": string(theme)})
			return
		}
		returnTo(svr, reg, w, r)
	}
}
