package apis

import (
	"net/http"

	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/keygate/keygate/internal/keysrv/db/models"
	"github.com/keygate/keygate/pkg/api"
	"github.com/rs/zerolog/log"
)

func toKeyInfo(k *models.LicenseKey) api.KeyInfo {
	return api.KeyInfo{
		Key:       k.KeyValue,
		Plan:      k.PlanType,
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		IsActive:  k.IsActive,
	}
}

func (h *Handlers) listKeys(r *http.Request) (*httpx.Response, error) {
	keys, err := h.licenses.List(r.Context())
	if err != nil {
		return nil, err
	}
	rsp := make([]api.KeyInfo, 0, len(keys))
	for _, k := range keys {
		rsp = append(rsp, toKeyInfo(k))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func (h *Handlers) generateKey(r *http.Request) (*httpx.Response, error) {
	var req api.GenerateKeyReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	key, err := h.licenses.Generate(r.Context(), req.PlanType)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.GenerateKeyRsp{Key: key.KeyValue},
	}, nil
}

func (h *Handlers) deleteKey(r *http.Request) (*httpx.Response, error) {
	var req api.KeyReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := h.licenses.Delete(r.Context(), req.Key); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Msg("license key deleted")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.SuccessRsp{Success: true},
	}, nil
}

func (h *Handlers) deactivateKey(r *http.Request) (*httpx.Response, error) {
	var req api.KeyReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := h.licenses.Deactivate(r.Context(), req.Key); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Msg("license key deactivated")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.SuccessRsp{Success: true},
	}, nil
}

func (h *Handlers) initDB(r *http.Request) (*httpx.Response, error) {
	if err := h.licenses.InitSchema(r.Context()); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.SuccessRsp{Success: true, Message: "database initialized"},
	}, nil
}
