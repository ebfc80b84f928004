package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-rpc/internal/config"
	"github.com/samvad-hq/samvad-rpc/internal/endpoints"
	"github.com/samvad-hq/samvad-rpc/internal/history"
	"github.com/samvad-hq/samvad-rpc/internal/logger"
	"github.com/samvad-hq/samvad-rpc/pkg/rpc"
)

// CallRequest describes one CLI invocation.
type CallRequest struct {
	Method   string
	Target   string // absolute URL, or a path when Endpoint is set
	Endpoint string // endpoint id from the registry, optional
	Body     []byte // request payload, nil when absent
	Binary   bool   // send Body as opaque bytes instead of JSON
	Headers  map[string]string
	Timeout  time.Duration // overrides endpoint and config defaults when positive
}

// Caller is the CLI runtime. It wires the endpoint registry, the rpc client,
// and the call-history store, and executes one call per invocation.
type Caller struct {
	cfg    *config.Config
	client *rpc.Client
	reg    *endpoints.Registry
	store  history.Store
	log    logger.Logger
}

// NewCaller builds a caller runtime from config files.
func NewCaller(cfg *config.Config, log logger.Logger) (*Caller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	var reg *endpoints.Registry
	if strings.TrimSpace(cfg.EndpointsFile) != "" {
		loaded, err := endpoints.LoadRegistry(cfg.EndpointsFile)
		if err != nil {
			return nil, fmt.Errorf("load endpoints registry: %w", err)
		}
		reg = loaded
		enabled := loaded.Enabled()
		ids := make([]string, 0, len(enabled))
		for _, e := range enabled {
			ids = append(ids, e.ID)
		}
		log.InfoObj("endpoints registry loaded", "endpoints_meta", map[string]any{
			"count":   len(loaded.All()),
			"enabled": ids,
		})
	}

	storeOpts := history.Options{
		EntryTTL:        cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanup,
	}
	store, err := history.NewStore(cfg.HistoryType, cfg.HistoryPath, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("init history store: %w", err)
	}

	client := rpc.New(
		rpc.WithTimeout(cfg.DefaultTimeout),
		rpc.WithLogger(log),
	)

	return &Caller{
		cfg:    cfg,
		client: client,
		reg:    reg,
		store:  store,
		log:    log,
	}, nil
}

// Execute performs the call described by req and records the outcome.
func (c *Caller) Execute(ctx context.Context, req CallRequest) (map[string]any, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("caller is not initialized")
	}

	target, callOpts, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	body, err := callBody(req)
	if err != nil {
		return nil, err
	}

	result, callErr := c.client.Call(ctx, req.Method, target, body, callOpts...)
	c.record(req.Method, target, callErr)
	return result, callErr
}

// Recent lists the newest recorded calls.
func (c *Caller) Recent(limit int) ([]history.Entry, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}
	return c.store.Recent(limit)
}

// Close releases the history store.
func (c *Caller) Close() {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.log.WarnObj("failed to close history store", "error", err.Error())
	}
}

// resolve turns the request target into a full URL plus per-call options,
// layering endpoint defaults under explicit request values.
func (c *Caller) resolve(req CallRequest) (string, []rpc.CallOption, error) {
	var opts []rpc.CallOption
	target := strings.TrimSpace(req.Target)

	if id := strings.TrimSpace(req.Endpoint); id != "" {
		if c.reg == nil {
			return "", nil, fmt.Errorf("no endpoints file configured, cannot resolve endpoint %q", id)
		}
		ep, ok := c.reg.Endpoint(id)
		if !ok {
			return "", nil, fmt.Errorf("unknown endpoint %q", id)
		}
		if ep.Enabled != nil && !*ep.Enabled {
			return "", nil, fmt.Errorf("endpoint %q is disabled", id)
		}
		resolved, err := ep.Resolve(target)
		if err != nil {
			return "", nil, err
		}
		target = resolved
		if len(ep.Headers) > 0 {
			opts = append(opts, rpc.WithCallHeaders(ep.Headers))
		}
		if ep.TimeoutMS > 0 {
			opts = append(opts, rpc.WithCallTimeout(time.Duration(ep.TimeoutMS)*time.Millisecond))
		}
	} else {
		parsed, err := url.Parse(target)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", nil, fmt.Errorf("target %q is not an absolute URL (use -e for a named endpoint)", req.Target)
		}
	}

	// Explicit request values win over endpoint defaults.
	if len(req.Headers) > 0 {
		opts = append(opts, rpc.WithCallHeaders(req.Headers))
	}
	if req.Timeout > 0 {
		opts = append(opts, rpc.WithCallTimeout(req.Timeout))
	}
	return target, opts, nil
}

// callBody prepares the rpc body value: opaque bytes when Binary, otherwise
// the payload must be a valid JSON document sent verbatim.
func callBody(req CallRequest) (any, error) {
	if len(req.Body) == 0 {
		return nil, nil
	}
	if req.Binary {
		return req.Body, nil
	}
	if !json.Valid(req.Body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(req.Body), nil
}

// record writes a history entry for a completed call; history failures are
// logged and never fail the call itself.
func (c *Caller) record(method, target string, callErr error) {
	if c.store == nil {
		return
	}
	entry := history.Entry{
		Method: method,
		URL:    target,
		At:     time.Now(),
	}
	entry.Outcome, entry.Status, entry.Message = classifyOutcome(callErr)
	if err := c.store.Record(entry); err != nil {
		c.log.WarnObj("failed to record call history", "error", err.Error())
	}
}

func classifyOutcome(err error) (outcome string, status int, message string) {
	if err == nil {
		return history.OutcomeOK, 0, ""
	}

	var timeoutErr *rpc.TimeoutError
	var netErr *rpc.NetworkError
	var srvErr *rpc.ServerError
	var usrErr *rpc.UserError
	switch {
	case errors.As(err, &timeoutErr):
		return history.OutcomeTimeout, 0, timeoutErr.Error()
	case errors.As(err, &netErr):
		return history.OutcomeNetwork, 0, netErr.Error()
	case errors.As(err, &srvErr):
		return history.OutcomeServer, srvErr.Status, srvErr.Message
	case errors.As(err, &usrErr):
		return history.OutcomeUser, usrErr.Status, usrErr.Message
	}
	// Not a classified call error (usage or wiring failure).
	return "", 0, err.Error()
}

// Exit codes reported by the CLI, one per error kind.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitTimeout = 3
	ExitNetwork = 4
	ExitServer  = 5
	ExitUser    = 6
)

// ExitCode maps a call error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch outcome, _, _ := classifyOutcome(err); outcome {
	case history.OutcomeTimeout:
		return ExitTimeout
	case history.OutcomeNetwork:
		return ExitNetwork
	case history.OutcomeServer:
		return ExitServer
	case history.OutcomeUser:
		return ExitUser
	}
	return ExitUsage
}
