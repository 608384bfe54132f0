package httpclient

// HTTPClientInterface is implemented by the network client and the in-process
// test client.
type HTTPClientInterface interface {
	// DoRequest returns the response body or an *HTTPError for failed statuses.
	DoRequest(opts RequestOptions) ([]byte, error)
	Get(path string, admin bool) ([]byte, error)
	Post(path string, data []byte, admin bool) ([]byte, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
