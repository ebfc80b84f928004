package httpclient

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a RestyClient suitable for single-shot RPC exchanges:
// redirects are never followed (a redirect response fails the call), no cookie
// jar is kept, and intermediaries are told not to cache. Deadlines come from
// the caller's context, not from the client.
func NewRestyClient() *RestyClient {
	return &RestyClient{client: newRestyBaseClient()}
}

func newRestyBaseClient() *resty.Client {
	c := resty.New()
	c.SetRedirectPolicy(resty.NoRedirectPolicy())
	c.SetCookieJar(nil)
	c.SetHeader("Cache-Control", "no-store")
	return c
}

// Do performs one HTTP exchange with the specified method, URL, body, and
// headers. Caller headers are applied last and win over the client defaults.
// When a body is present and no Content-Type header is supplied, the transport
// detects one; callers that care set the header themselves.
func (r *RestyClient) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(body) > 0 {
		req.SetBody(body)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) StatusCode() int           { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Status() string            { return r.resp.Status() }
func (r *restyResponseAdapter) Header(name string) string { return r.resp.Header().Get(name) }
func (r *restyResponseAdapter) Body() []byte              { return r.resp.Body() }

func (r *restyResponseAdapter) HasBody() bool {
	raw := r.resp.RawResponse
	return raw != nil && raw.ContentLength > 0
}
