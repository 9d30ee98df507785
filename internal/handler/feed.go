package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/job"
	"github.com/jobhack/web/internal/server"
	"github.com/snabb/sitemap"
)

// anonymousJobs runs q without credentials, so only public fields come back.
func anonymousJobs(f *fetcher.Fetcher, r *http.Request, q job.Query) ([]job.Job, error) {
	res, err := f.Fetch(r.Context(), &backend.Tokens{}, q.Remote(), fetcher.Options{})
	if err != nil {
		return nil, err
	}
	return res.Listing(), nil
}

func ServeRSSFeed(svr server.Server, f *fetcher.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := job.ParseQuery(r.URL.Query())
		jobs, err := anonymousJobs(f, r, q)
		if err != nil {
			svr.Log(err, "unable to retrieve jobs for RSS Feed")
			svr.XML(w, http.StatusInternalServerError, []byte{})
			return
		}
		cfg := svr.GetConfig()
		now := time.Now()
		feed := &feeds.Feed{
			Title:       fmt.Sprintf("%s Jobs", cfg.SiteName),
			Link:        &feeds.Link{Href: cfg.SiteURL(listingPath(q))},
			Description: fmt.Sprintf("Latest jobs on %s", cfg.SiteName),
			Author:      &feeds.Author{Name: cfg.SiteName},
			Created:     now,
		}
		for _, j := range jobs {
			// scores never leave the site through the feed
			c := job.Resolve(j)
			created := c.Job.CreatedAt
			if created.IsZero() {
				created = now
			}
			title := fmt.Sprintf("%s with %s", c.Job.Title, c.Job.Company)
			if c.Job.Location != "" {
				title += " - " + c.Job.Location
			}
			feed.Items = append(feed.Items, &feeds.Item{
				Id:          cfg.SiteURL(c.Path()),
				Title:       title,
				Link:        &feeds.Link{Href: cfg.SiteURL(c.Path())},
				Description: string(svr.MarkdownToHTML(c.Job.Description)),
				Created:     created,
			})
		}
		rssFeed, err := feed.ToRss()
		if err != nil {
			svr.Log(err, "unable to convert rss feed to xml")
			svr.XML(w, http.StatusInternalServerError, []byte{})
			return
		}
		svr.XML(w, http.StatusOK, []byte(rssFeed))
	}
}

func SitemapHandler(svr server.Server, f *fetcher.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := anonymousJobs(f, r, job.Query{Sort: job.SortDate})
		if err != nil {
			svr.Log(err, "unable to retrieve jobs for sitemap")
			svr.TEXT(w, http.StatusInternalServerError, "unable to fetch sitemap")
			return
		}
		cfg := svr.GetConfig()
		now := time.Now().UTC()
		sitemapFile := sitemap.New()
		sitemapFile.Add(&sitemap.URL{
			Loc:        cfg.SiteURL("/"),
			LastMod:    &now,
			ChangeFreq: sitemap.Hourly,
		})
		for _, j := range jobs {
			lastMod := j.CreatedAt
			if lastMod.IsZero() {
				lastMod = now
			}
			sitemapFile.Add(&sitemap.URL{
				Loc:        cfg.SiteURL(job.Path(j)),
				LastMod:    &lastMod,
				ChangeFreq: sitemap.Weekly,
			})
		}
		buf := new(bytes.Buffer)
		if _, err := sitemapFile.WriteTo(buf); err != nil {
			svr.Log(err, "sitemapFile.WriteTo")
			svr.TEXT(w, http.StatusInternalServerError, "unable to save sitemap file")
			return
		}
		svr.XML(w, http.StatusOK, buf.Bytes())
	}
}
