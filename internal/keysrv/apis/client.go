package apis

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/keygate/keygate/internal/keysrv/gateway"
	"github.com/keygate/keygate/internal/keysrv/license"
	"github.com/keygate/keygate/pkg/api"
	"github.com/rs/zerolog/log"
)

const msgRetry = "server error, please retry"

var validate = validator.New()

func (h *Handlers) validateKey(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req api.ValidateKeyReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if req.Key == "" {
		return &httpx.Response{
			StatusCode: http.StatusBadRequest,
			Response:   api.ValidateKeyRsp{Valid: false, Message: license.MsgKeyMissing},
		}, nil
	}

	decision, err := h.licenses.CheckAccess(ctx, req.Key)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("key validation failed")
		return &httpx.Response{
			StatusCode: http.StatusInternalServerError,
			Response:   api.ValidateKeyRsp{Valid: false, Message: msgRetry},
		}, nil
	}
	if !decision.Allowed {
		log.Ctx(ctx).Debug().Str("reason", decision.Message).Msg("key rejected")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.ValidateKeyRsp{Valid: decision.Allowed, Message: decision.Message},
	}, nil
}

func chatReply(status int, reply string) *httpx.Response {
	return &httpx.Response{
		StatusCode: status,
		Response:   api.ChatRsp{Reply: reply},
	}
}

func chatError(status int, msg string) *httpx.Response {
	return chatReply(status, "Error: "+msg)
}

// chat admits the request through the license check before anything is sent
// upstream. Failures answer with a displayable reply rather than the error
// envelope.
func (h *Handlers) chat(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req api.ChatReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		e := httpx.ToError(err)
		return chatError(e.StatusCode, e.Description), nil
	}

	decision, err := h.licenses.CheckAccess(ctx, req.LicenseKey)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("license check failed")
		return chatError(http.StatusInternalServerError, msgRetry), nil
	}
	if !decision.Allowed {
		log.Ctx(ctx).Debug().Str("reason", decision.Message).Msg("chat denied")
		return chatError(http.StatusForbidden, decision.Message), nil
	}

	if err := validate.Struct(&req); err != nil {
		return chatError(http.StatusBadRequest, "prompt is required"), nil
	}

	completion, err := h.completer.Complete(ctx, gateway.Request{
		Prompt:      req.Prompt,
		Model:       strings.TrimSpace(req.Model),
		Temperature: req.Temperature,
		Mode:        req.Mode,
	})
	if err != nil {
		return chatError(http.StatusInternalServerError, err.Error()), nil
	}
	log.Ctx(ctx).Debug().Str("provider", completion.Provider).Str("model", completion.Model).Msg("chat completed")
	return chatReply(http.StatusOK, completion.Reply), nil
}
