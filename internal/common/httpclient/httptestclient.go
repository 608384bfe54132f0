package httpclient

import (
	"net/http"
	"net/http/httptest"
)

// TestHTTPClient sends requests straight to an http.Handler through a
// recorder, without opening a network connection.
type TestHTTPClient struct {
	config  Configurator
	handler http.Handler
}

func NewTestClient(config Configurator, handler http.Handler) *TestHTTPClient {
	return &TestHTTPClient{
		config:  config,
		handler: handler,
	}
}

func (c *TestHTTPClient) DoRequest(opts RequestOptions) ([]byte, error) {
	req, err := buildRequest(c.config, opts)
	if err != nil {
		return nil, err
	}

	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	body := rr.Body.Bytes()
	if rr.Code >= 400 {
		return nil, responseError(rr.Code, body)
	}
	return body, nil
}

func (c *TestHTTPClient) Get(path string, admin bool) ([]byte, error) {
	return c.DoRequest(RequestOptions{
		Method: http.MethodGet,
		Path:   path,
		Admin:  admin,
	})
}

func (c *TestHTTPClient) Post(path string, data []byte, admin bool) ([]byte, error) {
	return c.DoRequest(RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   data,
		Admin:  admin,
	})
}
