package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth          *service.AuthService
	Profile       *service.ProfileService
	Users         *service.UsersService
	Friends       *service.FriendsService
	Projects      *service.ProjectsService
	Content       *service.ContentService
	Admin         *service.AdminService
	Notifications *service.NotificationService

	CookieCodec  auth.CookieCodec
	Tokens       auth.TokenCodec
	CookieSecure bool
	SessionTTL   time.Duration

	// LoginRateLimit is attempts per minute per IP and per email on the
	// sign-in endpoints. Every other API call gets sixty times that per IP.
	LoginRateLimit  int
	MaxProjectBytes int64
	MaxReleaseBytes int64

	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}
	if opts.MaxProjectBytes <= 0 {
		opts.MaxProjectBytes = service.DefaultMaxProjectBytes
	}
	if opts.MaxReleaseBytes <= 0 {
		opts.MaxReleaseBytes = 1 << 30
	}

	api := &api{
		logger:           logger,
		isProd:           opts.IsProd,
		dbPing:           opts.DBPing,
		authSvc:          opts.Auth,
		profileSvc:       opts.Profile,
		usersSvc:         opts.Users,
		friendsSvc:       opts.Friends,
		projectsSvc:      opts.Projects,
		contentSvc:       opts.Content,
		adminSvc:         opts.Admin,
		notificationsSvc: opts.Notifications,
		cookieCodec:      opts.CookieCodec,
		tokens:           opts.Tokens,
		cookieSecure:     opts.CookieSecure,
		sessionTTL:       opts.SessionTTL,
		loginLimiter:     newRateLimiter(opts.LoginRateLimit, opts.LoginRateLimit),
		maxProjectBytes:  opts.MaxProjectBytes,
		maxReleaseBytes:  opts.MaxReleaseBytes,
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.authSvc == nil {
		apiMux.HandleFunc("/api/", handleNotImplemented)
	} else {
		api.registerRoutes(apiMux)
	}

	apiHandler := RateLimit(newRateLimiter(opts.LoginRateLimit*60, 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleNotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	}))

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			// Clients call both /api/x and /api/x/.
			if !strings.HasSuffix(r.URL.Path, "/") {
				r.URL.Path += "/"
				r.URL.RawPath = ""
			}
			apiHandler.ServeHTTP(w, r)
			return
		}
		if h, pattern := publicMux.Handler(r); pattern != "" {
			h.ServeHTTP(w, r)
			return
		}
		handleNotFound(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = ClientIP(opts.TrustedProxies)(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func (a *api) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/registration/{$}", a.handleRegister)
	mux.HandleFunc("POST /api/login/{$}", a.handleLogin)
	mux.HandleFunc("POST /api/login/google/{$}", a.handleLoginGoogle)
	mux.HandleFunc("POST /api/login/apple/{$}", a.handleLoginApple)
	mux.HandleFunc("POST /api/logout/{$}", a.requireAuth(a.handleLogout))
	mux.HandleFunc("GET /api/user/role/{$}", a.requireAuth(a.handleUserRole))

	if a.profileSvc != nil {
		mux.HandleFunc("GET /api/profile/{$}", a.requireAuth(a.handleProfileGet))
		mux.HandleFunc("PUT /api/profile/update/{$}", a.requireAuth(a.handleProfileUpdate))
	}
	if a.usersSvc != nil {
		mux.HandleFunc("GET /api/users/{$}", a.requireAuth(a.handleUsersList))
	}

	if a.friendsSvc != nil {
		mux.HandleFunc("GET /api/friends/{$}", a.requireAuth(a.handleFriendsList))
		mux.HandleFunc("GET /api/friends/requests/{$}", a.requireAuth(a.handleFriendsIncoming))
		mux.HandleFunc("GET /api/friends/requests/sent/{$}", a.requireAuth(a.handleFriendsOutgoing))
		mux.HandleFunc("GET /api/friends/requests/count/{$}", a.requireAuth(a.handleFriendsIncomingCount))
		mux.HandleFunc("POST /api/friends/add/{$}", a.requireAuth(a.handleFriendsAdd))
		mux.HandleFunc("POST /api/friends/requests/respond/{$}", a.requireAuth(a.handleFriendsRespond))
		mux.HandleFunc("POST /api/friends/requests/cancel/{$}", a.requireAuth(a.handleFriendsCancel))
		mux.HandleFunc("DELETE /api/friends/remove/{$}", a.requireAuth(a.handleFriendsRemove))
	}

	if a.projectsSvc != nil {
		mux.HandleFunc("GET /api/users/{id}/projects/{$}", a.requireAuth(a.handleUserProjects))
		mux.HandleFunc("GET /api/project/{$}", a.requireAuth(a.handleProjectsOwned))
		mux.HandleFunc("GET /api/project/received/{$}", a.requireAuth(a.handleProjectsReceived))
		mux.HandleFunc("POST /api/project/add/{$}", a.requireAuth(a.handleProjectCreate))
		mux.HandleFunc("PATCH /api/project/change/{id}/{$}", a.requireAuth(a.handleProjectChange))
		mux.HandleFunc("DELETE /api/project/delete/{id}/{$}", a.requireAuth(a.handleProjectDelete))
		mux.HandleFunc("GET /api/project/download/{id}/{$}", a.requireAuth(a.handleProjectDownload))
		mux.HandleFunc("POST /api/project/share/{id}/{$}", a.requireAuth(a.handleProjectShare))
		mux.HandleFunc("GET /api/project/get_project_versions/{id}/{$}", a.requireAuth(a.handleProjectVersions))
		mux.HandleFunc("POST /api/project/get_project_versions/{id}/{$}", a.requireAuth(a.handleProjectVersions))
		mux.HandleFunc("DELETE /api/project/delete_received/{shared_id}/{$}", a.requireAuth(a.handleReceivedDelete))
	}

	if a.contentSvc != nil {
		for prefix, kind := range map[string]domain.ArticleKind{
			"/api/news/":          domain.ArticleNews,
			"/api/documentation/": domain.ArticleDocumentation,
		} {
			mux.HandleFunc("GET "+prefix+"{$}", a.requireAuth(a.handleArticlesList(kind)))
			mux.HandleFunc("POST "+prefix+"create/{$}", a.requireAdmin(a.handleArticleCreate(kind)))
			mux.HandleFunc("PUT "+prefix+"{id}/{$}", a.requireAdmin(a.handleArticleUpdate(kind)))
			mux.HandleFunc("DELETE "+prefix+"{id}/{$}", a.requireAdmin(a.handleArticleDelete(kind)))
		}

		mux.HandleFunc("GET /api/download/{$}", a.requireAuth(a.handleReleasesList))
		mux.HandleFunc("GET /api/download/{id}/{$}", a.requireAuth(a.handleReleaseDownload))
		mux.HandleFunc("POST /api/download/create/{$}", a.requireAdmin(a.handleReleaseCreate))
		mux.HandleFunc("DELETE /api/download/{id}/{$}", a.requireAdmin(a.handleReleaseDelete))

		mux.HandleFunc("GET /api/QA/{$}", a.requireAuth(a.handleQuestionsList))
		mux.HandleFunc("POST /api/QA/create/{$}", a.requireAuth(a.handleQuestionCreate))
		mux.HandleFunc("PATCH /api/QA/{id}/answer/{$}", a.requireAdmin(a.handleQuestionAnswer))
		mux.HandleFunc("DELETE /api/QA/{id}/{$}", a.requireAdmin(a.handleQuestionDelete))
	}

	if a.notificationsSvc != nil {
		mux.HandleFunc("POST /api/notifications/tokens/{$}", a.requireAuth(a.handleNotificationsTokenUpsert))
		mux.HandleFunc("DELETE /api/notifications/tokens/{$}", a.requireAuth(a.handleNotificationsTokenDelete))
	}

	if a.adminSvc != nil {
		mux.HandleFunc("GET /api/admin/users/{$}", a.requireAdmin(a.handleAdminUsersList))
		mux.HandleFunc("PATCH /api/admin/users/{id}/{$}", a.requireAdmin(a.handleAdminUserUpdate))
		mux.HandleFunc("GET /api/admin/audit/{$}", a.requireAdmin(a.handleAdminAudit))
	}
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc          *service.AuthService
	profileSvc       *service.ProfileService
	usersSvc         *service.UsersService
	friendsSvc       *service.FriendsService
	projectsSvc      *service.ProjectsService
	contentSvc       *service.ContentService
	adminSvc         *service.AdminService
	notificationsSvc *service.NotificationService

	cookieCodec  auth.CookieCodec
	tokens       auth.TokenCodec
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter    *rateLimiter
	maxProjectBytes int64
	maxReleaseBytes int64
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
