package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	SavedStoreCookie   = "cookie"
	SavedStoreMemory   = "memory"
	SavedStoreRedis    = "redis"
	SavedStorePostgres = "postgres"
)

type Config struct {
	Port            string
	Env             string // either prod or dev, will disable https and few other bits
	SessionKey      []byte
	BackendURL      string        // JobHack API base url, without the /api suffix
	BackendTimeout  time.Duration // per request timeout on backend calls
	BackendRPS      float64       // outbound request rate to the backend, 0 disables
	JobsCacheTTL    time.Duration // how long a listing result stays fresh
	SavedStore      string        // one of cookie, memory, redis, postgres
	RedisURL        string
	DatabaseURL     string
	SentryDSN       string
	DefaultTheme    string
	SiteName        string
	SiteHost        string
	URLProtocol     string
	ViewSessionIdle time.Duration // idle view sessions are dropped after this
	MaxUploadBytes  int64
}

func LoadConfig() (Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		return Config{}, fmt.Errorf("PORT cannot be empty")
	}
	sessionKeyString := os.Getenv("SESSION_KEY")
	if sessionKeyString == "" {
		return Config{}, fmt.Errorf("SESSION_KEY cannot be empty")
	}
	sessionKey, err := base64.StdEncoding.DecodeString(sessionKeyString)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to decode session key %s", sessionKeyString)
	}
	backendURL := strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	if backendURL == "" {
		return Config{}, fmt.Errorf("BACKEND_URL cannot be empty")
	}
	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}
	backendTimeout, err := durationOr("BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	backendRPS := 20.0
	if v := os.Getenv("BACKEND_RPS"); v != "" {
		backendRPS, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, errors.Wrapf(err, "unable to parse BACKEND_RPS %s", v)
		}
	}
	jobsCacheTTL, err := durationOr("JOBS_CACHE_TTL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	viewSessionIdle, err := durationOr("VIEW_SESSION_IDLE", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	savedStore := strings.ToLower(os.Getenv("SAVED_STORE"))
	if savedStore == "" {
		savedStore = SavedStoreCookie
	}
	redisURL := os.Getenv("REDIS_URL")
	databaseURL := os.Getenv("DATABASE_URL")
	switch savedStore {
	case SavedStoreCookie, SavedStoreMemory:
	case SavedStoreRedis:
		if redisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL cannot be empty when SAVED_STORE is redis")
		}
	case SavedStorePostgres:
		if databaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL cannot be empty when SAVED_STORE is postgres")
		}
	default:
		return Config{}, fmt.Errorf("SAVED_STORE %q is not one of cookie, memory, redis, postgres", savedStore)
	}
	maxUploadBytes := int64(5 << 20)
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		maxUploadBytes, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, errors.Wrapf(err, "unable to parse MAX_UPLOAD_BYTES %s", v)
		}
	}
	siteName := os.Getenv("SITE_NAME")
	if siteName == "" {
		siteName = "JobHack"
	}
	siteHost := os.Getenv("SITE_HOST")
	if siteHost == "" {
		siteHost = "localhost:" + port
	}
	urlProtocol := "https"
	if env == "dev" {
		urlProtocol = "http"
	}

	return Config{
		Port:            port,
		Env:             env,
		SessionKey:      sessionKey,
		BackendURL:      backendURL,
		BackendTimeout:  backendTimeout,
		BackendRPS:      backendRPS,
		JobsCacheTTL:    jobsCacheTTL,
		SavedStore:      savedStore,
		RedisURL:        redisURL,
		DatabaseURL:     databaseURL,
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		DefaultTheme:    os.Getenv("DEFAULT_THEME"),
		SiteName:        siteName,
		SiteHost:        siteHost,
		URLProtocol:     urlProtocol,
		ViewSessionIdle: viewSessionIdle,
		MaxUploadBytes:  maxUploadBytes,
	}, nil
}

// SiteURL joins the public site url with path.
func (c Config) SiteURL(path string) string {
	return fmt.Sprintf("%s://%s%s", c.URLProtocol, c.SiteHost, path)
}

func durationOr(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse %s %s", name, v)
	}
	return d, nil
}
