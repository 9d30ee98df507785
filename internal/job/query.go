package job

import (
	"net/url"
	"strings"
)

type Sort string

const (
	SortDate  Sort = "date"
	SortMatch Sort = "match"
)

// ParseSort maps anything that is not "match" to SortDate.
func ParseSort(s string) Sort {
	if strings.EqualFold(strings.TrimSpace(s), string(SortMatch)) {
		return SortMatch
	}
	return SortDate
}

// Query holds the active search parameters. OnlySaved is a local post-filter
// and is never sent to the backend.
type Query struct {
	Keyword   string
	Location  string
	Sort      Sort
	OnlySaved bool
}

// ParseQuery reads a Query from listing page parameters.
func ParseQuery(v url.Values) Query {
	saved := strings.ToLower(v.Get("saved"))
	return Query{
		Keyword:   strings.TrimSpace(v.Get("keyword")),
		Location:  strings.TrimSpace(v.Get("location")),
		Sort:      ParseSort(v.Get("sort")),
		OnlySaved: saved == "1" || saved == "true" || saved == "on",
	}
}

// Values encodes the backend query string.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Location != "" {
		v.Set("location", q.Location)
	}
	if q.Sort == SortMatch {
		v.Set("sort", string(SortMatch))
	}
	return v
}

// PageValues encodes the listing page query string, including the local
// saved filter.
func (q Query) PageValues() url.Values {
	v := q.Values()
	if q.OnlySaved {
		v.Set("saved", "1")
	}
	return v
}

// Remote strips the local-only parts of q.
func (q Query) Remote() Query {
	q.OnlySaved = false
	if q.Sort != SortMatch {
		q.Sort = SortDate
	}
	return q
}
