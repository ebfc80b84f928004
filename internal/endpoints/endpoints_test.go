package endpoints

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	raw := `
endpoints:
  - id: billing
    base_url: https://billing.example.com/api/
    timeout_ms: 2500
    headers:
      Authorization: "Bearer token"
  - id: search
    base_url: https://search.example.com
    enabled: false
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.All()); got != 2 {
		t.Fatalf("All() = %d entries, want 2", got)
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "billing" {
		t.Fatalf("expected only billing enabled, got %#v", enabled)
	}

	billing, ok := reg.Endpoint("billing")
	if !ok {
		t.Fatalf("billing endpoint missing")
	}
	if billing.TimeoutMS != 2500 {
		t.Fatalf("TimeoutMS = %d", billing.TimeoutMS)
	}
	if billing.Headers["Authorization"] != "Bearer token" {
		t.Fatalf("Headers = %v", billing.Headers)
	}
}

func TestLoadRegistryRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	raw := `
endpoints:
  - id: a
    base_url: https://one.example.com
  - id: a
    base_url: https://two.example.com
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Endpoint
		wantErr bool
	}{
		{name: "valid", cfg: Endpoint{ID: "a", BaseURL: "https://example.com"}},
		{name: "missing id", cfg: Endpoint{BaseURL: "https://example.com"}, wantErr: true},
		{name: "missing base url", cfg: Endpoint{ID: "a"}, wantErr: true},
		{name: "non-http scheme", cfg: Endpoint{ID: "a", BaseURL: "ftp://example.com"}, wantErr: true},
	}
	for _, tc := range tests {
		if err := validateEndpoint(tc.cfg); (err != nil) != tc.wantErr {
			t.Errorf("%s: validateEndpoint = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestEndpointResolve(t *testing.T) {
	e := Endpoint{ID: "billing", BaseURL: "https://billing.example.com/api/"}

	got, err := e.Resolve("v1/invoices")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "https://billing.example.com/api/v1/invoices"; got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}

	got, err = e.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "https://billing.example.com/api/"; got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}
