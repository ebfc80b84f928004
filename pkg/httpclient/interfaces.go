package httpclient

import "context"

// Response is a minimal HTTP response contract. The transport buffers the
// body before handing the Response out, so Body never blocks.
type Response interface {
	StatusCode() int
	// Status returns the full status line, e.g. "400 Bad Request".
	Status() string
	Header(name string) string
	Body() []byte
	// HasBody reports whether the response declared a body, derived from the
	// Content-Length header: false when the header is missing or <= 0.
	HasBody() bool
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Implementations must not follow redirects and must not attach cookies or
// credentials; a redirect response surfaces as a transport error.
type Client interface {
	Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (Response, error)
}
