package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/job"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := backend.NewClient(srv.URL, 5*time.Second, 0, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := backend.NewClient("/api", time.Second, 0, zerolog.Nop())
	assert.Error(t, err)
}

// ── DecodeJobs ──

func TestDecodeJobs(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		tiered  bool
		warning string
		ids     []int
		err     bool
	}{
		{name: "plain array", body: `[{"id":1},{"id":2}]`, ids: []int{1, 2}},
		{name: "empty array", body: `[]`, ids: []int{}},
		{name: "bool warning", body: `{"warning":true,"results":[{"id":3}]}`, tiered: true, warning: backend.DefaultWarning, ids: []int{3}},
		{name: "string warning", body: `{"warning":"Premium required for sort=match","results":[{"id":3}]}`, tiered: true, warning: "Premium required for sort=match", ids: []int{3}},
		{name: "warning without results", body: `{"warning":true}`, tiered: true, warning: backend.DefaultWarning, ids: []int{}},
		{name: "false warning", body: `{"warning":false,"results":[{"id":4}]}`, ids: []int{4}},
		{name: "empty warning", body: `{"warning":"","results":[{"id":4}]}`, ids: []int{4}},
		{name: "unknown object", body: `{"foo":1}`, err: true},
		{name: "scalar", body: `42`, err: true},
		{name: "empty", body: ``, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := backend.DecodeJobs([]byte(tt.body))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			ids := []int{}
			for _, j := range res.Listing() {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, tt.ids, ids)
			tiered, ok := res.(job.TieredResult)
			assert.Equal(t, tt.tiered, ok)
			if ok {
				assert.Equal(t, tt.warning, tiered.Warning)
			}
		})
	}
}

// ── Jobs ──

func TestJobsSendsQueryAndToken(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/", r.URL.Path)
		assert.Equal(t, "go", r.URL.Query().Get("keyword"))
		assert.Equal(t, "match", r.URL.Query().Get("sort"))
		assert.Empty(t, r.URL.Query().Get("saved"))
		assert.Empty(t, r.URL.Query().Get("onlySaved"))
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":1,"match_score":73.6}]`))
	})
	res, err := c.Jobs(context.Background(), &backend.Tokens{Access: "acc"}, job.Query{Keyword: "go", Sort: job.SortMatch, OnlySaved: true})
	require.NoError(t, err)
	require.IsType(t, job.PlainResult{}, res)
	assert.Equal(t, 74, res.Listing()[0].MatchScore.Clamp())
}

func TestJobsAnonymousHasNoAuthorization(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})
	_, err := c.Jobs(context.Background(), nil, job.Query{})
	require.NoError(t, err)
}

func TestJobsRefreshesOnceOn401(t *testing.T) {
	var jobCalls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh/":
			var in map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "ref", in["refresh"])
			w.Write([]byte(`{"access":"new-acc"}`))
		case "/api/jobs/":
			jobCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer new-acc" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
				return
			}
			w.Write([]byte(`[{"id":5}]`))
		}
	})
	tk := &backend.Tokens{Access: "old-acc", Refresh: "ref"}
	res, err := c.Jobs(context.Background(), tk, job.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Listing(), 1)
	assert.EqualValues(t, 2, jobCalls.Load())
	assert.Equal(t, "new-acc", tk.Access)
	assert.True(t, tk.Refreshed)
}

func TestJobsFailedRefreshSurfaces401(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
	})
	tk := &backend.Tokens{Access: "a", Refresh: "r"}
	_, err := c.Jobs(context.Background(), tk, job.Query{})
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "a", tk.Access)
	assert.False(t, tk.Refreshed)
}

func TestJobsServerError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Jobs(context.Background(), nil, job.Query{})
	require.Error(t, err)
	assert.Equal(t, "Failed", backend.Detail(err, "Failed"))
}

func TestJobNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/77/", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found"}`))
	})
	_, err := c.Job(context.Background(), nil, 77)
	assert.True(t, errors.Is(err, backend.ErrNotFound))
}

// ── auth, billing, resume ──

func TestLogin(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login/", r.URL.Path)
		w.Write([]byte(`{"access":"a","refresh":"r"}`))
	})
	tk, err := c.Login(context.Background(), "u", "p")
	require.NoError(t, err)
	assert.Equal(t, backend.Tokens{Access: "a", Refresh: "r"}, tk)
}

func TestRegisterFieldErrors(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"username":["A user with that username already exists."]}`))
	})
	err := c.Register(context.Background(), backend.RegisterRequest{Username: "u", Password: "secret1"})
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Fields, "username")
	assert.Empty(t, apiErr.Detail)
}

func TestCreateCheckoutSession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/billing/checkout-session/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"url":"https://checkout.example.com/s/1"}`))
	})
	u, err := c.CreateCheckoutSession(context.Background(), &backend.Tokens{Access: "a"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/s/1", u)
}

func TestCreateCheckoutSessionDetail(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"No such price: 'price_x'"}`))
	})
	_, err := c.CreateCheckoutSession(context.Background(), &backend.Tokens{Access: "a"})
	assert.Equal(t, "No such price: 'price_x'", backend.Detail(err, "Upgrade failed"))
}

func TestUploadResume(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(b))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resume_id":3,"ats_friendly":false,"issues":["No contact email found"],"chars":812}`))
	})
	res, err := c.UploadResume(context.Background(), &backend.Tokens{Access: "a"}, "cv.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ResumeID)
	assert.False(t, res.ATSFriendly)
	assert.Equal(t, []string{"No contact email found"}, res.Issues)
	assert.Equal(t, 812, res.Chars)
}
