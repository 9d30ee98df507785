package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/job"
	"github.com/jobhack/web/internal/savedjobs"
	"github.com/jobhack/web/internal/server"
	"github.com/jobhack/web/internal/view"
	"github.com/pkg/errors"
)

const (
	msgSaveFailed = "Unable to update saved jobs. Please try again."
	msgSavedFull  = "Your saved jobs list is full. Remove a job to save another."
)

func listingData(snap view.Snapshot, saved savedjobs.Set) map[string]interface{} {
	listing := snap.Listing(saved)
	var detail *job.Card
	title := ""
	if snap.HasSelection {
		c := job.Resolve(snap.Selected)
		c.Saved = saved.Has(c.Job.ID)
		detail = &c
		title = fmt.Sprintf("%s at %s", c.Job.Title, c.Job.Company)
	}
	return map[string]interface{}{
		"Title":         title,
		"Query":         snap.Query,
		"PageQuery":     snap.Query.PageValues().Encode(),
		"Listing":       listing,
		"Count":         len(listing.Cards),
		"Notice":        snap.Notice,
		"Warning":       snap.Warning,
		"PremiumNotice": snap.Query.Sort == job.SortMatch,
		"Upsell":        snap.Upsell,
		"Detail":        detail,
	}
}

func listingPath(q job.Query) string {
	if v := q.PageValues().Encode(); v != "" {
		return "/?" + v
	}
	return "/"
}

// search runs q for the visitor. Failures are already reflected in the
// returned snapshot, so they are only logged here.
func search(svr server.Server, vs *view.Session, w http.ResponseWriter, r *http.Request, q job.Query, force bool) view.Snapshot {
	tk := tokens(svr, r)
	snap, err := vs.Search(r.Context(), tk, q, force)
	keepTokens(svr, w, r, tk)
	switch {
	case err == nil, errors.Is(err, view.ErrSuperseded):
	case r.Context().Err() != nil:
	default:
		logger := svr.Logger()
		logger.Warn().Err(err).Str("keyword", q.Keyword).Msg("unable to fetch jobs")
	}
	return snap
}

// IndexPageHandler renders the listing. Arriving at it is a navigation and
// refetches, except when coming straight back from an in-page action on the
// same results, which are then shown as they were.
func IndexPageHandler(svr server.Server, reg *view.Registry, saved SavedJobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		q := job.ParseQuery(r.URL.Query())
		var snap view.Snapshot
		if cur := vs.Snapshot(); vs.Returning() && cur.Fetched && cur.Query.Remote() == q.Remote() {
			vs.SetOnlySaved(q.OnlySaved)
			snap = vs.Snapshot()
		} else {
			snap = search(svr, vs, w, r, q, true)
		}
		err := svr.Render(w, r, http.StatusOK, "jobs.html", listingData(snap, saved(w, r).Saved()))
		if err != nil {
			svr.Log(err, "unable to render jobs page")
		}
	}
}

type cardJSON struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Location string   `json:"location"`
	Percent  int      `json:"percent"`
	Locked   bool     `json:"locked"`
	Blurred  bool     `json:"blurred"`
	Saved    bool     `json:"saved"`
	Keywords []string `json:"matched_keywords,omitempty"`
	Path     string   `json:"path"`
}

// JobsFragmentHandler renders the results area only, reusing a fresh cached
// listing when there is one.
func JobsFragmentHandler(svr server.Server, reg *view.Registry, saved SavedJobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		snap := search(svr, vs, w, r, job.ParseQuery(r.URL.Query()), false)
		set := saved(w, r).Saved()
		if r.URL.Query().Get("format") == "json" {
			listing := snap.Listing(set)
			cards := make([]cardJSON, 0, len(listing.Cards))
			for _, c := range listing.Cards {
				cards = append(cards, cardJSON{
					ID:       c.Job.ID,
					Title:    c.Job.Title,
					Company:  c.Job.Company,
					Location: c.Job.Location,
					Percent:  c.Percent,
					Locked:   c.Locked,
					Blurred:  c.Blurred,
					Saved:    c.Saved,
					Keywords: c.Keywords,
					Path:     c.Path(),
				})
			}
			svr.JSON(w, http.StatusOK, map[string]interface{}{
				"status":  listing.Status.String(),
				"count":   len(cards),
				"warning": snap.Warning,
				"notice":  snap.Notice,
				"upsell":  snap.Upsell,
				"jobs":    cards,
			})
			return
		}
		if err := svr.Render(w, r, http.StatusOK, "results", listingData(snap, set)); err != nil {
			svr.Log(err, "unable to render results fragment")
		}
	}
}

// JobBySlugPageHandler opens the detail panel for a job. Jobs outside the
// current results are loaded by id.
func JobBySlugPageHandler(svr server.Server, api *backend.Client, reg *view.Registry, saved SavedJobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, err := strconv.Atoi(vars["id"])
		if err != nil {
			svr.RenderError(w, r, http.StatusNotFound, "Job not found", "This job is no longer available.")
			return
		}
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		vs.Returning()
		if snap := vs.Snapshot(); !snap.Fetched && !snap.Loading {
			search(svr, vs, w, r, snap.Query, false)
		}
		j, found := vs.SelectID(id)
		if !found {
			tk := tokens(svr, r)
			j, err = api.Job(r.Context(), tk, id)
			keepTokens(svr, w, r, tk)
			if errors.Is(err, backend.ErrNotFound) {
				svr.RenderError(w, r, http.StatusNotFound, "Job not found", "This job is no longer available.")
				return
			}
			if err != nil {
				svr.Log(err, fmt.Sprintf("unable to load job %d", id))
				svr.RenderError(w, r, http.StatusBadGateway, "Failed to load job", "Please try again in a moment.")
				return
			}
			vs.Select(j)
		}
		if slug := vars["slug"]; slug != "" && slug != job.Slug(j) {
			svr.Redirect(w, r, http.StatusMovedPermanently, job.Path(j))
			return
		}
		err = svr.Render(w, r, http.StatusOK, "jobs.html", listingData(vs.Snapshot(), saved(w, r).Saved()))
		if err != nil {
			svr.Log(err, "unable to render job page")
		}
	}
}

func ClearSelectionHandler(svr server.Server, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		vs.ClearSelection()
		vs.MarkReturn()
		svr.Redirect(w, r, http.StatusSeeOther, listingPath(vs.Snapshot().Query))
	}
}

// ToggleSavedJobHandler flips a saved job. Forms send the state they want in
// "saved", which makes repeated submits from one page agree.
func ToggleSavedJobHandler(svr server.Server, reg *view.Registry, saved SavedJobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			svr.JSON(w, http.StatusBadRequest, nil)
			return
		}
		local := saved(w, r)
		if raw := r.FormValue("saved"); raw != "" {
			want, perr := strconv.ParseBool(raw)
			if perr != nil {
				svr.JSON(w, http.StatusBadRequest, nil)
				return
			}
			err = local.Put(id, want)
		} else {
			err = local.Toggle(id)
		}
		msg, status := "", http.StatusOK
		if err != nil {
			msg, status = msgSaveFailed, http.StatusServiceUnavailable
			if errors.Is(err, savedjobs.ErrCookieFull) {
				msg, status = msgSavedFull, http.StatusInsufficientStorage
			}
		}
		if wantsJSON(r) {
			res := map[string]interface{}{
				"id":    id,
				"saved": local.IsSaved(id),
			}
			if msg != "" {
				res["error"] = msg
			}
			svr.JSON(w, status, res)
			return
		}
		if msg != "" {
			if ferr := svr.Sessions.AddFlash(w, r, msg); ferr != nil {
				svr.Log(ferr, "unable to save flash")
			}
		}
		returnTo(svr, reg, w, r)
	}
}

// RequestUpgradeHandler is the unlock affordance on a locked score. It only
// raises the upgrade prompt.
func RequestUpgradeHandler(svr server.Server, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		if j, found := lookup(vs.Snapshot(), r.FormValue("id")); found {
			job.Resolve(j).Unlock(vs)
		} else {
			vs.RequestUpgrade(job.ReasonLockedScore)
		}
		vs.MarkReturn()
		svr.Redirect(w, r, http.StatusSeeOther, back(r, "/"))
	}
}

func lookup(snap view.Snapshot, rawID string) (job.Job, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return job.Job{}, false
	}
	if snap.HasSelection && snap.Selected.ID == id {
		return snap.Selected, true
	}
	for _, j := range snap.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return job.Job{}, false
}

func DismissUpgradeHandler(svr server.Server, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		vs.DismissUpgrade()
		vs.MarkReturn()
		svr.Redirect(w, r, http.StatusSeeOther, back(r, "/"))
	}
}

// CheckoutHandler sends the visitor to the hosted checkout page. On failure
// the listing is left as it was and the reason is flashed. Cached listings are
// dropped on success since the visitor's tier is about to change.
func CheckoutHandler(svr server.Server, api *backend.Client, f *fetcher.Fetcher, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, ok := viewSession(svr, reg, w, r)
		if !ok {
			return
		}
		tk := tokens(svr, r)
		dst, err := api.CreateCheckoutSession(r.Context(), tk)
		keepTokens(svr, w, r, tk)
		if err != nil {
			logger := svr.Logger()
			logger.Warn().Err(err).Msg("unable to create checkout session")
			if ferr := svr.Sessions.AddFlash(w, r, backend.Detail(err, "Upgrade failed")); ferr != nil {
				svr.Log(ferr, "unable to save flash")
			}
			vs.MarkReturn()
			svr.Redirect(w, r, http.StatusSeeOther, back(r, "/"))
			return
		}
		f.Invalidate()
		vs.DismissUpgrade()
		svr.Redirect(w, r, http.StatusSeeOther, dst)
	}
}
