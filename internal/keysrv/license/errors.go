package license

import (
	"net/http"

	"github.com/keygate/keygate/internal/common/apperrors"
)

var (
	ErrLicense     apperrors.Error = apperrors.New("license error").SetStatusCode(http.StatusInternalServerError)
	ErrInvalidPlan apperrors.Error = ErrLicense.New("invalid plan").SetStatusCode(http.StatusBadRequest)
	ErrKeyRequired apperrors.Error = ErrLicense.New("key missing").SetStatusCode(http.StatusBadRequest)
)
