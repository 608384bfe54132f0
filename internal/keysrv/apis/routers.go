// Package apis binds the license service and completion gateway to JSON
// endpoints under /api.
package apis

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/keygate/keygate/internal/keysrv/gateway"
	"github.com/keygate/keygate/internal/keysrv/license"
)

// Completer performs an admitted chat completion.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (*gateway.Completion, error)
}

type Handlers struct {
	licenses      *license.Service
	completer     Completer
	adminPassword string
}

func NewHandlers(licenses *license.Service, completer Completer, adminPassword string) *Handlers {
	return &Handlers{
		licenses:      licenses,
		completer:     completer,
		adminPassword: adminPassword,
	}
}

type handlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

func (h *Handlers) clientHandlers() []handlerParam {
	return []handlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/validate-key",
			Handler: h.validateKey,
		},
		{
			Method:  http.MethodPost,
			Path:    "/chat",
			Handler: h.chat,
		},
	}
}

func (h *Handlers) adminHandlers() []handlerParam {
	return []handlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/keys",
			Handler: h.listKeys,
		},
		{
			Method:  http.MethodPost,
			Path:    "/generate-key",
			Handler: h.generateKey,
		},
		{
			Method:  http.MethodPost,
			Path:    "/delete-key",
			Handler: h.deleteKey,
		},
		{
			Method:  http.MethodPost,
			Path:    "/deactivate-key",
			Handler: h.deactivateKey,
		},
		{
			Method:  http.MethodPost,
			Path:    "/init-db",
			Handler: h.initDB,
		},
	}
}

// Router mounts the client and admin endpoints under /api.
func (h *Handlers) Router(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		for _, handler := range h.clientHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuth(h.adminPassword))
			for _, handler := range h.adminHandlers() {
				r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
			}
		})
	})
}
