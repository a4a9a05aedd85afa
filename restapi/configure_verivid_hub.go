package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/restapi/handlers"
)

type Server struct {
	httpServer *http.Server
}

// configureAPI registers every route. Authenticated routes live on their own subrouter.
func configureAPI(h *handlers.Handlers, cfg *config.ServerConfig, authCfg *config.AuthConfig, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	proxies := newProxySet(cfg.TrustedProxies)
	router.Use(rateLimitMiddleware(newIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, maxTrackedClients), proxies))

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	router.HandleFunc("/auth/nonce", h.Nonce).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)

	recovery := router.PathPrefix("/auth/recover").Subrouter()
	recoveryLimiter := newIPRateLimiter(rate.Every(time.Minute/time.Duration(authCfg.RecoveryPerMinute)), authCfg.RecoveryPerMinute, maxTrackedClients)
	recovery.Use(rateLimitMiddleware(recoveryLimiter, proxies))
	recovery.HandleFunc("/request", h.RequestRecovery).Methods(http.MethodPost)
	recovery.HandleFunc("/verify", h.VerifyRecovery).Methods(http.MethodPost)

	router.HandleFunc("/videos/check-duplicate", h.CheckDuplicate).Methods(http.MethodPost)
	router.HandleFunc("/videos/verify-hash", h.VerifyHash).Methods(http.MethodPost)
	router.HandleFunc("/verify/video/{id}", h.VerifyVideo).Methods(http.MethodGet)
	router.HandleFunc("/verify/{proofHash}", h.VerifyProof).Methods(http.MethodGet)

	authed := router.NewRoute().Subrouter()
	authed.Use(authMiddleware(h.Auth))
	authed.HandleFunc("/users/me", h.Me).Methods(http.MethodGet)
	authed.HandleFunc("/users/me", h.UpdateMe).Methods(http.MethodPost)
	authed.HandleFunc("/videos", h.ListVideos).Methods(http.MethodGet)
	authed.HandleFunc("/videos/upload-init", h.UploadInit).Methods(http.MethodPost)
	authed.HandleFunc("/videos/{id}/upload", h.UploadContent).Methods(http.MethodPut)
	authed.HandleFunc("/videos/{id}/upload-complete", h.UploadComplete).Methods(http.MethodPost)
	authed.HandleFunc("/videos/{id}/jobs", h.VideoJobs).Methods(http.MethodGet)
	authed.HandleFunc("/videos/{id}", h.DeleteVideo).Methods(http.MethodDelete)
	authed.HandleFunc("/verify/prepare-tx", h.PrepareTx).Methods(http.MethodPost)
	authed.HandleFunc("/verify/confirm-tx", h.ConfirmTx).Methods(http.MethodPost)

	// parameterized public routes go last so they do not shadow /users/me
	router.HandleFunc("/users/{wallet}", h.PublicProfile).Methods(http.MethodGet)
	router.HandleFunc("/videos/{id}", h.GetVideo).Methods(http.MethodGet)
	return router
}

// setupGlobalMiddleware wraps the whole api, including the metrics route.
func setupGlobalMiddleware(handler http.Handler) http.Handler {
	return recoverMiddleware(logMiddleware(handler))
}

// NewHandler builds the http handler of the api.
func NewHandler(h *handlers.Handlers, cfg *config.ServerConfig, authCfg *config.AuthConfig, metricsHandler http.Handler) http.Handler {
	return setupGlobalMiddleware(configureAPI(h, cfg, authCfg, metricsHandler))
}

func NewServer(h *handlers.Handlers, cfg *config.ServerConfig, authCfg *config.AuthConfig, metricsHandler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           NewHandler(h, cfg, authCfg, metricsHandler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() {
	logging.Logger.Infof("serving api on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
