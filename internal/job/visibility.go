package job

import (
	"fmt"

	"github.com/gosimple/slug"
)

// Reason says why an upgrade prompt was requested.
type Reason string

const (
	ReasonLockedScore Reason = "locked_score"
	ReasonTieredSort  Reason = "tiered_sort"
)

// Upseller receives upgrade prompt requests. It must not navigate or start a
// payment; it only records that the prompt should be shown.
type Upseller interface {
	RequestUpgrade(reason Reason)
}

// Card is the presentation record for one job.
type Card struct {
	Job      Job
	Percent  int
	Blurred  bool
	Locked   bool
	Keywords []string
	Saved    bool
}

// Resolve decides what of j may be shown. A locked job never discloses its
// match score or matched keywords, whatever the record carries.
func Resolve(j Job) Card {
	if TierOf(j) == TierFree {
		return Card{
			Job:     redact(j),
			Percent: j.ScoreHint.Clamp(),
			Blurred: true,
			Locked:  true,
		}
	}
	c := Card{
		Job:     j,
		Percent: j.MatchScore.Clamp(),
	}
	if len(j.MatchedKeywords) > 0 {
		c.Keywords = append([]string(nil), j.MatchedKeywords...)
	}
	return c
}

func redact(j Job) Job {
	j.MatchScore = Percent{}
	j.MatchedKeywords = nil
	return j
}

// Unlock raises an upgrade request for a locked card and reports whether it
// did so.
func (c Card) Unlock(u Upseller) bool {
	if !c.Locked || u == nil {
		return false
	}
	u.RequestUpgrade(ReasonLockedScore)
	return true
}

// Tone buckets the displayed percentage for badge colouring.
func (c Card) Tone() string {
	switch {
	case c.Percent >= 80:
		return "high"
	case c.Percent >= 50:
		return "medium"
	default:
		return "low"
	}
}

func (c Card) Slug() string {
	return Slug(c.Job)
}

func (c Card) Path() string {
	return Path(c.Job)
}

func Slug(j Job) string {
	return slug.Make(fmt.Sprintf("%s %s", j.Title, j.Company))
}

// Path is the canonical detail URL for j.
func Path(j Job) string {
	s := Slug(j)
	if s == "" {
		return fmt.Sprintf("/job/%d", j.ID)
	}
	return fmt.Sprintf("/job/%d-%s", j.ID, s)
}
