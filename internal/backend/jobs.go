package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jobhack/web/internal/job"
	"github.com/pkg/errors"
)

// DefaultWarning is shown when the backend flags a tiered response without
// any text of its own.
const DefaultWarning = "Premium required for sort=match"

// Jobs runs a listing query. The local saved filter is never sent.
func (c *Client) Jobs(ctx context.Context, tk *Tokens, q job.Query) (job.Result, error) {
	body, err := c.send(ctx, tk, request{
		method: http.MethodGet,
		path:   "/api/jobs/",
		query:  q.Values(),
	})
	if err != nil {
		return nil, err
	}
	return DecodeJobs(body)
}

// Job fetches a single posting.
func (c *Client) Job(ctx context.Context, tk *Tokens, id int) (job.Job, error) {
	body, err := c.send(ctx, tk, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/jobs/%d/", id),
	})
	if err != nil {
		return job.Job{}, err
	}
	var j job.Job
	if err := json.Unmarshal(body, &j); err != nil {
		return job.Job{}, errors.Wrap(err, "unable to decode job")
	}
	return j, nil
}

// DecodeJobs reads either a plain array of jobs or a tiered envelope
// {"warning": ..., "results": [...]}.
func DecodeJobs(body []byte) (job.Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrUnexpectedResponse
	}
	switch body[0] {
	case '[':
		jobs := []job.Job{}
		if err := json.Unmarshal(body, &jobs); err != nil {
			return nil, errors.Wrap(err, "unable to decode jobs")
		}
		return job.PlainResult{Jobs: jobs}, nil
	case '{':
		var env struct {
			Warning json.RawMessage `json:"warning"`
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, errors.Wrap(err, "unable to decode jobs envelope")
		}
		jobs := []job.Job{}
		if len(env.Results) > 0 && !bytes.Equal(env.Results, []byte("null")) {
			if err := json.Unmarshal(env.Results, &jobs); err != nil {
				return nil, errors.Wrap(err, "unable to decode jobs envelope results")
			}
		}
		if warning, ok := warningText(env.Warning); ok {
			return job.TieredResult{Warning: warning, Jobs: jobs}, nil
		}
		if len(env.Results) == 0 {
			return nil, ErrUnexpectedResponse
		}
		return job.PlainResult{Jobs: jobs}, nil
	}
	return nil, ErrUnexpectedResponse
}

// warningText reports whether raw is truthy and what to show for it.
func warningText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch w := v.(type) {
	case bool:
		return DefaultWarning, w
	case string:
		return w, w != ""
	case float64:
		return DefaultWarning, w != 0
	case nil:
		return "", false
	default:
		return DefaultWarning, true
	}
}
