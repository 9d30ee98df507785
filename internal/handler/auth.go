package handler

import (
	"net/http"
	"strings"

	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/server"
	"github.com/jobhack/web/internal/view"
	"github.com/pkg/errors"
)

const (
	msgLoginFailed        = "Login failed. Please check your credentials."
	msgSignedIn           = "Signed in successfully"
	msgPasswordsDiffer    = "Passwords do not match"
	msgPasswordTooShort   = "Password must be at least 6 characters"
	msgUsernameTaken      = "Username already exists"
	msgEmailTaken         = "Email already exists"
	msgRegistrationFailed = "Registration failed. Please try again."
	msgRegistered         = "Account created successfully! Please sign in."

	minPasswordLength = 6
)

func LoginPageHandler(svr server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svr.Sessions.SignedIn(r) {
			svr.Redirect(w, r, http.StatusSeeOther, "/")
			return
		}
		renderLogin(svr, w, r, http.StatusOK, "", "")
	}
}

func renderLogin(svr server.Server, w http.ResponseWriter, r *http.Request, status int, username, msg string) {
	err := svr.Render(w, r, status, "login.html", map[string]interface{}{
		"Title":    "Login",
		"Username": username,
		"Error":    msg,
	})
	if err != nil {
		svr.Log(err, "unable to render login page")
	}
}

// LoginHandler stores the tokens and starts the visitor's view afresh, since
// results fetched anonymously no longer apply.
func LoginHandler(svr server.Server, api *backend.Client, f *fetcher.Fetcher, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		tk, err := api.Login(r.Context(), username, password)
		if err != nil {
			logger := svr.Logger()
			logger.Info().Err(err).Str("username", username).Msg("login failed")
			renderLogin(svr, w, r, http.StatusUnauthorized, username, msgLoginFailed)
			return
		}
		if err := svr.Sessions.SetTokens(w, r, tk); err != nil {
			svr.Log(err, "unable to store tokens")
			renderLogin(svr, w, r, http.StatusInternalServerError, username, msgLoginFailed)
			return
		}
		f.Invalidate()
		if visitorID, err := svr.Sessions.VisitorID(w, r); err == nil {
			reg.Get(visitorID).Leave()
		}
		if err := svr.Sessions.AddFlash(w, r, msgSignedIn); err != nil {
			svr.Log(err, "unable to save flash")
		}
		svr.Redirect(w, r, http.StatusSeeOther, "/")
	}
}

func RegisterPageHandler(svr server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderRegister(svr, w, r, http.StatusOK, "", "", "")
	}
}

func renderRegister(svr server.Server, w http.ResponseWriter, r *http.Request, status int, username, email, msg string) {
	err := svr.Render(w, r, status, "register.html", map[string]interface{}{
		"Title":    "Register",
		"Username": username,
		"Email":    email,
		"Error":    msg,
	})
	if err != nil {
		svr.Log(err, "unable to render register page")
	}
}

func RegisterHandler(svr server.Server, api *backend.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := backend.RegisterRequest{
			Username: strings.TrimSpace(r.FormValue("username")),
			Email:    strings.TrimSpace(r.FormValue("email")),
			Password: r.FormValue("password"),
		}
		if in.Password != r.FormValue("password2") {
			renderRegister(svr, w, r, http.StatusBadRequest, in.Username, in.Email, msgPasswordsDiffer)
			return
		}
		if len(in.Password) < minPasswordLength {
			renderRegister(svr, w, r, http.StatusBadRequest, in.Username, in.Email, msgPasswordTooShort)
			return
		}
		if err := api.Register(r.Context(), in); err != nil {
			logger := svr.Logger()
			logger.Info().Err(err).Str("username", in.Username).Msg("registration failed")
			renderRegister(svr, w, r, http.StatusBadRequest, in.Username, in.Email, registrationError(err))
			return
		}
		if err := svr.Sessions.AddFlash(w, r, msgRegistered); err != nil {
			svr.Log(err, "unable to save flash")
		}
		svr.Redirect(w, r, http.StatusSeeOther, "/login")
	}
}

// registrationError maps backend field errors to a single message. Username
// conflicts win over email ones.
func registrationError(err error) string {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return msgRegistrationFailed
	}
	if _, ok := apiErr.Fields["username"]; ok {
		return msgUsernameTaken
	}
	if _, ok := apiErr.Fields["email"]; ok {
		return msgEmailTaken
	}
	return msgRegistrationFailed
}

// LogoutHandler drops the tokens and every cached listing so nothing fetched
// with them is served again.
func LogoutHandler(svr server.Server, f *fetcher.Fetcher, reg *view.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svr.Sessions.ClearTokens(w, r); err != nil {
			svr.Log(err, "unable to clear tokens")
		}
		f.Invalidate()
		if vs, ok := viewSession(svr, reg, w, r); ok {
			vs.Leave()
			svr.Redirect(w, r, http.StatusSeeOther, "/")
		}
	}
}
