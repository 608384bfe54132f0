package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/keygate/keygate/internal/common/logtrace"
	commonmiddleware "github.com/keygate/keygate/internal/common/middleware"
	"github.com/keygate/keygate/internal/keysrv/apis"
	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/keygate/keygate/internal/keysrv/license"
	"github.com/keygate/keygate/pkg/api"
)

type KeyServer struct {
	Router   *chi.Mux
	cfg      *config.ConfigParam
	licenses *license.Service
	handlers *apis.Handlers
}

func CreateNewServer(cfg *config.ConfigParam, licenses *license.Service, completer apis.Completer) (*KeyServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if licenses == nil || completer == nil {
		return nil, fmt.Errorf("license service and completer are required")
	}
	s := &KeyServer{
		Router:   chi.NewRouter(),
		cfg:      cfg,
		licenses: licenses,
		handlers: apis.NewHandlers(licenses, completer, cfg.Admin.Password),
	}
	return s, nil
}

func (s *KeyServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if s.cfg.HandleCORS {
		s.Router.Use(s.HandleCORS())
	}
	s.Router.Use(commonmiddleware.LimitBody(s.cfg.MaxRequestBodySize))
	s.Router.Use(commonmiddleware.SetTimeout(s.cfg.GetRequestTimeout()))

	s.handlers.Router(s.Router)
	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)

	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Info().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to walk routes")
		}
	}
}

func (s *KeyServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &api.VersionRsp{
		ServerVersion: api.ServerVersion,
		ApiVersion:    api.ApiVersion,
	})
}

func (s *KeyServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	if _, err := s.licenses.Count(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("key store unavailable during readiness check")
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, &api.ReadinessRsp{
			Status: "not ready",
			Error:  "key store unavailable",
		})
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &api.ReadinessRsp{Status: "ready"})
}

// HandleCORS allows browser clients from the configured origins (any origin
// when none are configured).
func (s *KeyServer) HandleCORS() func(http.Handler) http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{commonmiddleware.RequestIDHeader},
		MaxAge:         300,
	})
}
