package view

import (
	"github.com/jobhack/web/internal/job"
	"github.com/jobhack/web/internal/savedjobs"
)

// Filter applies the local saved filter. It keeps the backend order and
// never sorts.
func Filter(jobs []job.Job, saved savedjobs.Set, onlySaved bool) []job.Job {
	if !onlySaved {
		return jobs
	}
	out := make([]job.Job, 0, len(jobs))
	for _, j := range jobs {
		if saved.Has(j.ID) {
			out = append(out, j)
		}
	}
	return out
}

// Present resolves each job for display and marks saved ones.
func Present(jobs []job.Job, saved savedjobs.Set) []job.Card {
	cards := make([]job.Card, 0, len(jobs))
	for _, j := range jobs {
		c := job.Resolve(j)
		c.Saved = saved.Has(j.ID)
		cards = append(cards, c)
	}
	return cards
}
