// Package httpclient provides a client for the keygate HTTP API. It handles
// request building, admin authentication and error envelopes. Server details
// come from a Configurator implementation.
package httpclient

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Configurator provides the server location and the admin credential.
type Configurator interface {
	GetServerURL() string
	GetAdminPassword() string
}

// HTTPError is a failed response. Message holds the server's error text when
// the body carried one.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// HTTPClient makes requests to a keygate server.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions configures the underlying transport.
type ClientOptions struct {
	Timeout               time.Duration // zero means no client timeout
	DisableCertValidation bool
}

// NewClient creates a client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{Timeout: 60 * time.Second}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}
	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions describes a single request. Admin requests carry the
// configured admin password as a bearer credential.
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
	Admin       bool
}

func buildRequest(config Configurator, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader = http.NoBody
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequest(opts.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.Admin && config.GetAdminPassword() != "" {
		req.Header.Set("Authorization", "Bearer "+config.GetAdminPassword())
	}
	return req, nil
}

// responseError converts a failed response into an HTTPError. The error
// envelope is preferred, then a chat reply, then the raw body.
func responseError(status int, body []byte) error {
	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String && msg.String() != "" {
		return &HTTPError{StatusCode: status, Message: msg.String()}
	}
	if reply := gjson.GetBytes(body, "reply"); reply.Type == gjson.String && reply.String() != "" {
		return &HTTPError{StatusCode: status, Message: strings.TrimPrefix(reply.String(), "Error: ")}
	}
	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.String() != "" {
		return &HTTPError{StatusCode: status, Message: msg.String()}
	}
	if status == http.StatusNotFound {
		return &HTTPError{StatusCode: status, Message: "server doesn't implement this endpoint"}
	}
	return &HTTPError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// DoRequest makes a request and returns the response body. Status codes of
// 400 and above are returned as *HTTPError.
func (c *HTTPClient) DoRequest(opts RequestOptions) ([]byte, error) {
	req, err := buildRequest(c.config, opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode >= 400 {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *HTTPClient) Get(path string, admin bool) ([]byte, error) {
	return c.DoRequest(RequestOptions{
		Method: http.MethodGet,
		Path:   path,
		Admin:  admin,
	})
}

func (c *HTTPClient) Post(path string, data []byte, admin bool) ([]byte, error) {
	return c.DoRequest(RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   data,
		Admin:  admin,
	})
}
