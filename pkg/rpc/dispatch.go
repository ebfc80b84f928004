package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-rpc/pkg/httpclient"
)

// DefaultTimeout bounds a call when neither the client nor the call supplies
// a deadline of its own.
const DefaultTimeout = 5 * time.Second

// dispatch performs exactly one HTTP exchange and hands the raw response to
// the classifier untouched. Transport failures collapse to two kinds: if the
// deadline fired before completion the call timed out, otherwise the network
// failed. The distinction is made by which event won the race, never by
// inspecting the transport's error text, since a cancelled request and a
// dropped connection look alike at that layer.
func dispatch(ctx context.Context, transport httpclient.Client, method, url string, body any, timeout time.Duration, headers map[string]string) (httpclient.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	payload, merged, err := encodeBody(body, headers)
	if err != nil {
		// The request never reached the wire.
		return nil, &NetworkError{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := transport.Do(ctx, method, url, payload, merged)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{}
		}
		return nil, &NetworkError{}
	}
	return resp, nil
}

// encodeBody prepares the outbound payload and header set. A JSON-serializable
// body forces Content-Type: application/json unless the caller supplied a
// Content-Type of their own, in which case the caller's header wins. An opaque
// []byte body is sent as-is with no forced content type.
func encodeBody(body any, headers map[string]string) ([]byte, map[string]string, error) {
	merged := make(map[string]string, len(headers)+1)

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, nil, err
		}
		payload = data
		if !hasContentType(headers) {
			merged["Content-Type"] = "application/json"
		}
	}

	for k, v := range headers {
		merged[k] = v
	}
	return payload, merged, nil
}

func hasContentType(headers map[string]string) bool {
	for k := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return true
		}
	}
	return false
}
