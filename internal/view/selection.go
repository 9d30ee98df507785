package view

import "github.com/jobhack/web/internal/job"

// Selection tracks the job expanded in the detail panel. The zero value is
// Idle.
type Selection struct {
	active *job.Job
}

// Select moves to Selected(j), replacing any previous selection.
func (s *Selection) Select(j job.Job) {
	s.active = &j
}

// Clear moves to Idle. Clearing while Idle does nothing.
func (s *Selection) Clear() {
	s.active = nil
}

func (s Selection) Active() (job.Job, bool) {
	if s.active == nil {
		return job.Job{}, false
	}
	return *s.active, true
}
