// Package endpoints loads the named-endpoint registry used by the CLI so a
// call can target "billing /v1/invoices" instead of a full URL.
package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// configFile represents the structure of the endpoints configuration file.
type configFile struct {
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`
}

// Endpoint is a single named target declared in config files.
type Endpoint struct {
	ID        string            `json:"id" yaml:"id"`
	BaseURL   string            `json:"base_url" yaml:"base_url"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	TimeoutMS int               `json:"timeout_ms" yaml:"timeout_ms"`
	Enabled   *bool             `json:"enabled" yaml:"enabled"`
}

// Resolve joins the endpoint base URL with a request path.
func (e Endpoint) Resolve(path string) (string, error) {
	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return "", fmt.Errorf("endpoint %q base url: %w", e.ID, err)
	}
	if path == "" {
		return base.String(), nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("endpoint %q path: %w", e.ID, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Registry materializes endpoint definitions loaded from config files.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	idx       map[string]Endpoint
}

// LoadRegistry loads the endpoint registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("endpoints file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open endpoints file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Endpoints) == 0 {
		return nil, errors.New("endpoints file contains no endpoints entries")
	}

	reg := &Registry{
		endpoints: make([]Endpoint, 0, len(fileReg.Endpoints)),
		idx:       make(map[string]Endpoint, len(fileReg.Endpoints)),
	}

	for i := range fileReg.Endpoints {
		cfg := sanitizeEndpoint(fileReg.Endpoints[i])
		if err := validateEndpoint(cfg); err != nil {
			return nil, fmt.Errorf("endpoints file entry %d: %w", i, err)
		}
		if _, dup := reg.idx[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate endpoint id %q", cfg.ID)
		}
		reg.endpoints = append(reg.endpoints, cfg)
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// All returns every declared endpoint in file order.
func (r *Registry) All() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Enabled returns the endpoints not explicitly disabled.
func (r *Registry) Enabled() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Endpoint
	for _, e := range r.endpoints {
		if e.Enabled == nil || *e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Endpoint looks up an endpoint by id.
func (r *Registry) Endpoint(id string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.idx[strings.TrimSpace(id)]
	return e, ok
}

// parseRegistry attempts to decode the endpoints file content.
func parseRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg configFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("endpoints file format not recognized (expected YAML or JSON)")
}

// sanitizeEndpoint trims and normalizes the endpoint fields.
func sanitizeEndpoint(cfg Endpoint) Endpoint {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Headers = sanitizeHeaders(cfg.Headers)
	if cfg.TimeoutMS < 0 {
		cfg.TimeoutMS = 0
	}
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	return cfg
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateEndpoint checks that required fields are present.
func validateEndpoint(cfg Endpoint) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required for endpoint %q", cfg.ID)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url of endpoint %q: %w", cfg.ID, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("base_url of endpoint %q must be http or https", cfg.ID)
	}
	return nil
}
