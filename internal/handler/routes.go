package handler

import (
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/middleware"
	"github.com/jobhack/web/internal/server"
	"github.com/jobhack/web/internal/session"
	"github.com/jobhack/web/internal/view"
)

// RegisterRoutes wires every page and action onto svr.
func RegisterRoutes(
	svr server.Server,
	api *backend.Client,
	f *fetcher.Fetcher,
	reg *view.Registry,
	saved SavedJobs,
	themes *session.Themes,
) {
	svr.RegisterRoute("/health", HealthHandler(svr, api), []string{"GET"})
	svr.RegisterRoute("/rss", ServeRSSFeed(svr, f), []string{"GET"})
	svr.RegisterRoute("/sitemap.xml", SitemapHandler(svr, f), []string{"GET"})

	// job listing
	svr.RegisterRoute("/", IndexPageHandler(svr, reg, saved), []string{"GET"})
	svr.RegisterRoute("/x/jobs", JobsFragmentHandler(svr, reg, saved), []string{"GET"})

	// job detail panel
	svr.RegisterRoute("/job/{id:[0-9]+}", JobBySlugPageHandler(svr, api, reg, saved), []string{"GET"})
	svr.RegisterRoute("/job/{id:[0-9]+}-{slug}", JobBySlugPageHandler(svr, api, reg, saved), []string{"GET"})
	svr.RegisterRoute("/x/j/clear", ClearSelectionHandler(svr, reg), []string{"POST"})

	// saved jobs
	svr.RegisterRoute("/x/saved/{id:[0-9]+}", ToggleSavedJobHandler(svr, reg, saved), []string{"POST"})

	// upgrade prompt and checkout
	svr.RegisterRoute("/x/upsell", RequestUpgradeHandler(svr, reg), []string{"POST"})
	svr.RegisterRoute("/x/upsell/dismiss", DismissUpgradeHandler(svr, reg), []string{"POST"})
	svr.RegisterRoute("/x/billing/checkout", CheckoutHandler(svr, api, f, reg), []string{"POST"})

	// auth
	svr.RegisterRoute("/login", LoginPageHandler(svr), []string{"GET"})
	svr.RegisterRoute("/login", LoginHandler(svr, api, f, reg), []string{"POST"})
	svr.RegisterRoute("/register", RegisterPageHandler(svr), []string{"GET"})
	svr.RegisterRoute("/register", RegisterHandler(svr, api), []string{"POST"})
	svr.RegisterRoute("/logout", LogoutHandler(svr, f, reg), []string{"POST"})

	// resume upload
	svr.RegisterRoute("/upload", middleware.UserAuthenticatedMiddleware(svr.Sessions, UploadResumePageHandler(svr)), []string{"GET"})
	svr.RegisterRoute("/upload", middleware.UserAuthenticatedMiddleware(svr.Sessions, UploadResumeHandler(svr, api)), []string{"POST"})

	svr.RegisterRoute("/x/theme", ToggleThemeHandler(svr, reg, themes), []string{"POST"})
}
