package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is an HTTP error response.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// Failure is the result code carried by every error envelope.
const Failure int = 0

// Send writes the error envelope. A nil writer is ignored.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{
		Result: Failure,
		Error:  e.Description,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("unable to encode error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

func newError(status int, def string, msg ...string) *Error {
	s := def
	if len(msg) > 0 && msg[0] != "" {
		s = msg[0]
	}
	return &Error{
		Description: s,
		StatusCode:  status,
	}
}

func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported")
}

func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data")
}

// ErrApplicationError is a 500 with an optional message.
func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", msg...)
}

// ErrUnAuthorized is a 401 with an optional message.
func ErrUnAuthorized(msg ...string) *Error {
	return newError(http.StatusUnauthorized, "unable to authenticate request", msg...)
}

func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "request timed out")
}

func ErrRequestTooLarge(limit int64) *Error {
	return newError(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large (limit: %d bytes)", limit))
}
