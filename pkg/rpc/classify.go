package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-rpc/pkg/httpclient"
)

// userErrorField is the body field a server sets to signal an application
// level failure whose text is meant for end-user display.
const userErrorField = "user_error_message"

// classify turns a completed HTTP response into the decoded JSON object or
// exactly one classified error.
func classify(resp httpclient.Response) (map[string]any, error) {
	status := resp.StatusCode()
	if status >= 200 && status <= 299 {
		return classifySuccess(resp)
	}
	return nil, classifyFailure(resp)
}

// classifySuccess handles the 2xx path. A response that declares no body is
// canonicalized to the empty object; anything else must be a JSON object.
func classifySuccess(resp httpclient.Response) (map[string]any, error) {
	if !resp.HasBody() {
		return map[string]any{}, nil
	}

	status := resp.StatusCode()
	contentType := resp.Header("Content-Type")
	if !isJSONContentType(contentType) {
		// A malformed server contract, not a transport fault.
		return nil, &ServerError{
			Message: fmt.Sprintf("server response content-type is not json: %q", contentType),
			Status:  status,
		}
	}

	var value any
	if err := json.Unmarshal(resp.Body(), &value); err != nil {
		return nil, &ServerError{Message: "server returned malformed json data", Status: status}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &ServerError{
			Message: fmt.Sprintf("server response is not a JSON object: %v", value),
			Status:  status,
		}
	}
	return obj, nil
}

// classifyFailure handles the non-2xx path. Diagnostic extraction is strictly
// best-effort: a structured user message wins, then a plain-text body, then
// the bare status line. None of the extraction steps may fail the call.
func classifyFailure(resp httpclient.Response) error {
	status := resp.StatusCode()

	if obj, ok := errorObject(resp); ok {
		if msg, ok := obj[userErrorField].(string); ok {
			return &UserError{Message: msg, Status: status}
		}
	}

	text, _ := plainTextBody(resp)
	return statusError(resp.Status(), text, status)
}

// errorObject attempts the best-effort JSON decode of a failure body. It
// reports false whenever the body is empty, is not declared as JSON, fails to
// parse, or does not decode to an object.
func errorObject(resp httpclient.Response) (map[string]any, bool) {
	body := resp.Body()
	if len(body) == 0 || !isJSONContentType(resp.Header("Content-Type")) {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, false
	}
	obj, ok := value.(map[string]any)
	return obj, ok
}

// plainTextBody attempts the best-effort text read of a failure body,
// reporting false unless the body is non-empty and declared text/plain.
func plainTextBody(resp httpclient.Response) (string, bool) {
	body := resp.Body()
	if len(body) == 0 || !hasContentTypePrefix(resp.Header("Content-Type"), "text/plain") {
		return "", false
	}
	return string(body), true
}

func isJSONContentType(contentType string) bool {
	return hasContentTypePrefix(contentType, "application/json")
}

func hasContentTypePrefix(contentType, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), prefix)
}
