package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/job"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source runs a job query against the backend.
type Source interface {
	Jobs(ctx context.Context, tk *backend.Tokens, q job.Query) (job.Result, error)
}

type Options struct {
	// Force skips the cache, as on an explicit navigation to the listing.
	Force bool
}

// Fetcher caches job query results per viewer for a short freshness window
// and collapses identical concurrent queries into one backend call.
type Fetcher struct {
	src    Source
	cache  *bigcache.BigCache
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

type entry struct {
	Tiered    bool
	Warning   string
	Jobs      []job.Job
	FetchedAt time.Time
}

type flight struct {
	res    job.Result
	tokens backend.Tokens
}

func New(src Source, ttl time.Duration, logger zerolog.Logger) (*Fetcher, error) {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.CleanWindow = ttl
	if cfg.CleanWindow < time.Second {
		cfg.CleanWindow = time.Second
	}
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 4096
	cfg.HardMaxCacheSize = 256
	cfg.Verbose = false
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialise job cache")
	}
	return &Fetcher{
		src:    src,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Fetch returns the result for q as seen by the viewer holding tk. The local
// saved filter on q is ignored. A cancelled ctx returns immediately; the
// shared backend call still completes and fills the cache.
func (f *Fetcher) Fetch(ctx context.Context, tk *backend.Tokens, q job.Query, opts Options) (job.Result, error) {
	q = q.Remote()
	key := cacheKey(tk, q)
	if !opts.Force {
		if res, ok := f.lookup(key); ok {
			return res, nil
		}
	}

	var tokens backend.Tokens
	if tk != nil {
		tokens = *tk
	}
	flightKey := key
	if opts.Force {
		flightKey = "force:" + key
	}
	ch := f.group.DoChan(flightKey, func() (interface{}, error) {
		var tkp *backend.Tokens
		if tk != nil {
			tkp = &tokens
		}
		res, err := f.src.Jobs(context.WithoutCancel(ctx), tkp, q)
		if err != nil {
			return nil, err
		}
		f.store(key, res)
		return flight{res: res, tokens: tokens}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		fl := r.Val.(flight)
		if tk != nil && fl.tokens.Refreshed {
			tk.Access = fl.tokens.Access
			tk.Refreshed = true
		}
		return fl.res, nil
	}
}

// Cached returns a fresh cached result for q as seen by the viewer holding
// tk, without calling the backend.
func (f *Fetcher) Cached(tk *backend.Tokens, q job.Query) (job.Result, bool) {
	return f.lookup(cacheKey(tk, q.Remote()))
}

// Invalidate drops every cached result, for when the viewer's tier may have
// changed.
func (f *Fetcher) Invalidate() {
	if err := f.cache.Reset(); err != nil {
		f.logger.Warn().Err(err).Msg("unable to reset job cache")
	}
}

func (f *Fetcher) lookup(key string) (job.Result, bool) {
	b, err := f.cache.Get(key)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		f.logger.Warn().Err(err).Msg("unable to decode cached jobs")
		return nil, false
	}
	if f.now().Sub(e.FetchedAt) >= f.ttl {
		return nil, false
	}
	if e.Jobs == nil {
		e.Jobs = []job.Job{}
	}
	if e.Tiered {
		return job.TieredResult{Warning: e.Warning, Jobs: e.Jobs}, true
	}
	return job.PlainResult{Jobs: e.Jobs}, true
}

func (f *Fetcher) store(key string, res job.Result) {
	e := entry{Jobs: res.Listing(), FetchedAt: f.now()}
	if t, ok := res.(job.TieredResult); ok {
		e.Tiered = true
		e.Warning = t.Warning
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		f.logger.Warn().Err(err).Msg("unable to encode jobs for cache")
		return
	}
	if err := f.cache.Set(key, buf.Bytes()); err != nil {
		f.logger.Warn().Err(err).Msg("unable to cache jobs")
	}
}

func cacheKey(tk *backend.Tokens, q job.Query) string {
	viewer := "anon"
	if tk != nil && tk.Access != "" {
		viewer = tk.Access
	}
	h := sha256.New()
	for _, part := range []string{viewer, q.Keyword, q.Location, string(q.Sort)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
