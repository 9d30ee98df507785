package job

import (
	"encoding/json"
	"time"
)

// Job is a single posting as returned by the backend. Values are never
// mutated after decoding; presentation state lives on Card.
type Job struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
	MatchScore      Percent   `json:"match_score"`
	ScoreHint       Percent   `json:"score_hint"`
	Locked          bool      `json:"locked,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// UnmarshalJSON tolerates a missing or malformed created_at, which older
// backend builds omit.
func (j *Job) UnmarshalJSON(b []byte) error {
	type plain Job
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"created_at"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	j.CreatedAt = time.Time{}
	if len(aux.CreatedAt) > 0 {
		var t time.Time
		if err := json.Unmarshal(aux.CreatedAt, &t); err == nil {
			j.CreatedAt = t
		}
	}
	return nil
}

// Tier is the viewer's entitlement as observed on a single record.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
)

// TierOf infers the tier from the locked flag. The backend sends no other
// tier indication on job records.
func TierOf(j Job) Tier {
	if j.Locked {
		return TierFree
	}
	return TierPremium
}
