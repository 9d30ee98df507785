package view

import (
	"context"
	"sync"
	"time"

	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/job"
	"github.com/jobhack/web/internal/savedjobs"
	"github.com/pkg/errors"
)

// NoticeFetchFailed is the transient message shown when a search fails.
const NoticeFetchFailed = "Failed to load jobs"

// ErrSuperseded is returned by Search when a newer search was issued before
// this one completed. Its response was discarded.
var ErrSuperseded = errors.New("search superseded by a newer one")

type Status int

const (
	StatusLoading Status = iota
	StatusFailed
	StatusEmpty
	StatusReady
	// StatusIdle is a session that has fetched nothing and has nothing in
	// flight.
	StatusIdle
)

// returnWindow bounds how long after an in-page action the listing may be
// shown again without refetching.
const returnWindow = 10 * time.Second

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFailed:
		return "failed"
	case StatusEmpty:
		return "empty"
	case StatusIdle:
		return "idle"
	default:
		return "ready"
	}
}

type Fetcher interface {
	Fetch(ctx context.Context, tk *backend.Tokens, q job.Query, opts fetcher.Options) (job.Result, error)
	Cached(tk *backend.Tokens, q job.Query) (job.Result, bool)
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	Query        job.Query
	Jobs         []job.Job
	Warning      string
	Fetched      bool
	Loading      bool
	Failed       bool
	Notice       string
	Upsell       bool
	Selected     job.Job
	HasSelection bool
}

// Listing is what the results area renders.
type Listing struct {
	Cards  []job.Card
	Status Status
}

// Listing derives the visible cards from the snapshot and the saved set.
// It is recomputed on every call.
func (s Snapshot) Listing(saved savedjobs.Set) Listing {
	jobs := Filter(s.Jobs, saved, s.Query.OnlySaved)
	l := Listing{Cards: Present(jobs, saved), Status: StatusReady}
	switch {
	case !s.Fetched && s.Failed:
		l.Status = StatusFailed
	case !s.Fetched && s.Loading:
		l.Status = StatusLoading
	case !s.Fetched:
		l.Status = StatusIdle
	case len(l.Cards) == 0:
		l.Status = StatusEmpty
	}
	return l
}

// Session is one browser's job view. Searches may overlap; the state always
// reflects the most recently issued one.
type Session struct {
	mu        sync.Mutex
	fetcher   Fetcher
	now       func() time.Time
	issued    uint64
	cancel    context.CancelFunc
	query     job.Query
	jobs      []job.Job
	warning   string
	fetched   bool
	loading   bool
	failed    bool
	notice    string
	upsell    bool
	upsells   int
	selection Selection
	lastSeen  time.Time
	returnAt  time.Time
	onUpsell  func(job.Reason)
}

func NewSession(f Fetcher) *Session {
	return newSession(f, time.Now)
}

func newSession(f Fetcher, now func() time.Time) *Session {
	return &Session{fetcher: f, now: now, lastSeen: now()}
}

// OnUpsell registers fn to be called whenever an upgrade prompt is raised.
// fn runs with the session locked and must not call back into it.
func (s *Session) OnUpsell(fn func(job.Reason)) {
	s.mu.Lock()
	s.onUpsell = fn
	s.mu.Unlock()
}

// Search issues q. Any in-flight search is cancelled and its response, should
// it still arrive, is discarded. On failure the last fetched jobs are kept.
// A tiered result raises the upgrade prompt only when it came from the
// backend; one served from the cache leaves the prompt as it is.
func (s *Session) Search(ctx context.Context, tk *backend.Tokens, q job.Query, force bool) (Snapshot, error) {
	s.mu.Lock()
	s.issued++
	n := s.issued
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.loading = true
	s.lastSeen = s.now()
	s.mu.Unlock()

	var (
		res    job.Result
		err    error
		cached bool
	)
	if !force {
		res, cached = s.fetcher.Cached(tk, q)
	}
	if !cached {
		res, err = s.fetcher.Fetch(fctx, tk, q, fetcher.Options{Force: force})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n != s.issued {
		return s.snapshot(), ErrSuperseded
	}
	s.cancel = nil
	s.loading = false
	if err != nil {
		// the visitor went away; leave the state as it was before q
		if ctx.Err() != nil {
			return s.snapshot(), err
		}
		s.query = q
		s.failed = true
		s.notice = NoticeFetchFailed
		return s.snapshot(), err
	}
	s.query = q
	s.failed = false
	s.notice = ""
	s.fetched = true
	s.jobs = res.Listing()
	s.warning = ""
	if t, ok := res.(job.TieredResult); ok {
		s.warning = t.Warning
		if !cached {
			s.requestUpgrade(job.ReasonTieredSort)
		}
	}
	return s.snapshot(), nil
}

// MarkReturn records that the visitor is being sent back to the listing
// after an in-page action such as closing the upgrade prompt.
func (s *Session) MarkReturn() {
	s.mu.Lock()
	s.returnAt = s.now()
	s.mu.Unlock()
}

// Returning reports whether this request follows a recent MarkReturn. The
// mark is consumed.
func (s *Session) Returning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := !s.returnAt.IsZero() && s.now().Sub(s.returnAt) < returnWindow
	s.returnAt = time.Time{}
	return ok
}

// Leave abandons any in-flight search, as when the visitor navigates away.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	s.returnAt = time.Time{}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	sel, ok := s.selection.Active()
	return Snapshot{
		Query:        s.query,
		Jobs:         s.jobs,
		Warning:      s.warning,
		Fetched:      s.fetched,
		Loading:      s.loading,
		Failed:       s.failed,
		Notice:       s.notice,
		Upsell:       s.upsell,
		Selected:     sel,
		HasSelection: ok,
	}
}

// SetOnlySaved changes the local saved filter without fetching.
func (s *Session) SetOnlySaved(on bool) {
	s.mu.Lock()
	s.query.OnlySaved = on
	s.mu.Unlock()
}

// RequestUpgrade raises the upgrade prompt. It never starts a checkout.
func (s *Session) RequestUpgrade(reason job.Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestUpgrade(reason)
}

func (s *Session) requestUpgrade(reason job.Reason) {
	s.upsell = true
	s.upsells++
	s.lastSeen = s.now()
	if s.onUpsell != nil {
		s.onUpsell(reason)
	}
}

func (s *Session) DismissUpgrade() {
	s.mu.Lock()
	s.upsell = false
	s.mu.Unlock()
}

// UpgradeRequests counts prompts raised over the session's life.
func (s *Session) UpgradeRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsells
}

func (s *Session) Select(j job.Job) {
	s.mu.Lock()
	s.selection.Select(j)
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// SelectID selects the job with id from the current results, if present.
func (s *Session) SelectID(id int) (job.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			s.selection.Select(j)
			s.lastSeen = s.now()
			return j, true
		}
	}
	return job.Job{}, false
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selection.Clear()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
