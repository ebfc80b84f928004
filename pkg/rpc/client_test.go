package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-rpc/pkg/httpclient"
)

func TestCallRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var sent map[string]any
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": sent})
	}))
	defer srv.Close()

	client := New()
	got, err := client.Call(context.Background(), http.MethodPost, srv.URL, map[string]any{"a": float64(1), "b": []any{"x"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := map[string]any{"echo": map[string]any{"a": float64(1), "b": []any{"x"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Call = %v, want %v", got, want)
	}
}

func TestCallEmptyBodyIsEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty object, got %v", got)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil, WithCallTimeout(100*time.Millisecond))
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T (%v)", err, err)
	}
	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned before deadline: %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("deadline wildly overshot: %v", elapsed)
	}
}

func TestCallConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, url, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T (%v)", err, err)
	}
}

func TestCallRedirectIsHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T (%v)", err, err)
	}
}

func TestCallRejectsNonJSONSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected *ServerError, got %T (%v)", err, err)
	}
	if want := `server response content-type is not json: "text/plain"`; srvErr.Message != want {
		t.Fatalf("Message = %q, want %q", srvErr.Message, want)
	}
}

func TestCallUserError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"user_error_message":"err1"}`)
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	var usrErr *UserError
	if !errors.As(err, &usrErr) {
		t.Fatalf("expected *UserError, got %T (%v)", err, err)
	}
	if usrErr.Message != "err1" || usrErr.Status != 400 {
		t.Fatalf("UserError = %+v", usrErr)
	}
}

func TestCallPlainTextDiagnostic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "err1")
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected *ServerError, got %T (%v)", err, err)
	}
	if srvErr.Message != "400 Bad Request, err1" || srvErr.Status != 400 {
		t.Fatalf("ServerError = %+v", srvErr)
	}
	if !srvErr.Is400() || srvErr.Is500() {
		t.Fatalf("range predicates wrong for %+v", srvErr)
	}
}

func TestCallBareStatusDiagnostic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected *ServerError, got %T (%v)", err, err)
	}
	if srvErr.Message != "400 Bad Request" || srvErr.Status != 400 {
		t.Fatalf("ServerError = %+v", srvErr)
	}
}

func TestCallOpaqueBody(t *testing.T) {
	raw := []byte{0x0, 0x1, 0x2, 0xff}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := io.ReadAll(r.Body)
		if string(got) != string(raw) {
			t.Errorf("body = %v, want %v", got, raw)
		}
		if ct := r.Header.Get("Content-Type"); ct == "application/json" {
			t.Errorf("json content type forced for opaque body")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	if _, err := New().Call(context.Background(), http.MethodPost, srv.URL, raw); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestCallHeaderMerging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Base"); got != "1" {
			t.Errorf("X-Base = %q", got)
		}
		if got := r.Header.Get("X-Override"); got != "call" {
			t.Errorf("X-Override = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := New(WithHeaders(map[string]string{"X-Base": "1", "X-Override": "client"}))
	_, err := client.Call(context.Background(), http.MethodGet, srv.URL, nil, WithCallHeader("X-Override", "call"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
}

// recordingTransport captures the dispatched request and returns a canned response.
type recordingTransport struct {
	method  string
	url     string
	body    []byte
	headers map[string]string
	resp    *fakeResponse
}

func (r *recordingTransport) Do(_ context.Context, method, url string, body []byte, headers map[string]string) (httpclient.Response, error) {
	r.method = method
	r.url = url
	r.body = body
	r.headers = headers
	return r.resp, nil
}

func TestCallUsesInjectedTransport(t *testing.T) {
	transport := &recordingTransport{resp: jsonResponse(200, `{"ok":true}`)}
	client := New(WithTransport(transport), WithHeaders(map[string]string{"X-Base": "1"}))

	got, err := client.Call(context.Background(), http.MethodPost, "https://example.com/v1/x", map[string]any{"a": float64(1)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got["ok"] != true {
		t.Fatalf("Call = %v", got)
	}
	if transport.method != http.MethodPost || transport.url != "https://example.com/v1/x" {
		t.Fatalf("transport saw %s %s", transport.method, transport.url)
	}
	if string(transport.body) != `{"a":1}` {
		t.Fatalf("transport body = %q", transport.body)
	}
	if transport.headers["X-Base"] != "1" || transport.headers["Content-Type"] != "application/json" {
		t.Fatalf("transport headers = %v", transport.headers)
	}
}

func TestCallConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := client.Call(context.Background(), http.MethodGet, srv.URL, nil)
			if err != nil {
				t.Errorf("Call: %v", err)
				return
			}
			if got["ok"] != true {
				t.Errorf("Call = %v", got)
			}
		}()
	}
	wg.Wait()
}
