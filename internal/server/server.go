package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	stdtemplate "html/template"

	"github.com/getsentry/raven-go"
	"github.com/gorilla/mux"
	"github.com/jobhack/web/internal/config"
	"github.com/jobhack/web/internal/middleware"
	"github.com/jobhack/web/internal/session"
	"github.com/jobhack/web/internal/template"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg      config.Config
	router   *mux.Router
	tmpl     *template.Template
	Sessions *session.Manager
	Themes   session.ThemeReader
	logger   zerolog.Logger
}

func NewServer(
	cfg config.Config,
	r *mux.Router,
	t *template.Template,
	sessions *session.Manager,
	themes session.ThemeReader,
	logger zerolog.Logger,
) Server {
	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
		raven.SetEnvironment(cfg.Env)
	}
	return Server{
		cfg:      cfg,
		router:   r,
		tmpl:     t,
		Sessions: sessions,
		Themes:   themes,
		logger:   logger,
	}
}

func (s Server) RegisterRoute(path string, handler func(w http.ResponseWriter, r *http.Request), methods []string) {
	s.router.HandleFunc(path, handler).Methods(methods...)
}

func (s Server) MarkdownToHTML(str string) stdtemplate.HTML {
	return s.tmpl.MarkdownToHTML(str)
}

func (s Server) GetConfig() config.Config {
	return s.cfg
}

func (s Server) Logger() zerolog.Logger {
	return s.logger
}

// Render executes htmlView with the site wide values every layout expects.
// Pending flashes are consumed.
func (s Server) Render(w http.ResponseWriter, r *http.Request, status int, htmlView string, data map[string]interface{}) error {
	if data == nil {
		data = make(map[string]interface{})
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = ""
	}
	data["SiteName"] = s.cfg.SiteName
	data["SiteHost"] = s.cfg.SiteHost
	data["Theme"] = string(s.Themes.Current(r))
	data["SignedIn"] = s.Sessions.SignedIn(r)
	data["Flashes"] = s.Sessions.Flashes(w, r)

	return s.tmpl.Render(w, status, htmlView, data)
}

// RenderError shows the generic error page.
func (s Server) RenderError(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	err := s.Render(w, r, status, "error.html", map[string]interface{}{
		"Title":   heading,
		"Heading": heading,
		"Message": message,
	})
	if err != nil {
		s.Log(err, "unable to render error page")
	}
}

func (s Server) XML(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	w.Write(data)
}

func (s Server) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (s Server) TEXT(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(text))
}

func (s Server) Log(err error, msg string) {
	if s.cfg.SentryDSN != "" {
		raven.CaptureErrorAndWait(err, map[string]string{"ctx": msg})
	}
	s.logger.Error().Err(err).Msg(msg)
}

func (s Server) Redirect(w http.ResponseWriter, r *http.Request, status int, dst string) {
	http.Redirect(w, r, dst, status)
}

// Handler is the router wrapped in the request middleware chain.
func (s Server) Handler() http.Handler {
	return middleware.HTTPSMiddleware(
		middleware.LoggingMiddleware(middleware.HeadersMiddleware(s.router, s.cfg.Env), s.logger),
		s.cfg.Env,
	)
}

func (s Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	if s.cfg.Env == "dev" {
		s.logger.Info().Msgf("local env http://localhost:%s", s.cfg.Port)
		addr = fmt.Sprintf("localhost:%s", s.cfg.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
