package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref     string
		name    string
		version string
		wantErr bool
	}{
		{ref: "secret://jwt-signing-key", name: "jwt-signing-key", version: "latest"},
		{ref: "secret://jwt-signing-key?version=3", name: "jwt-signing-key", version: "3"},
		{ref: "secret:///padded/", name: "padded", version: "latest"},
		{ref: "secret://", wantErr: true},
		{ref: "secret://name?version=%zz", wantErr: true},
	}

	for _, tc := range tests {
		name, version, err := parseReference(tc.ref)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseReference(%q) expected error", tc.ref)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseReference(%q) returned error: %v", tc.ref, err)
		}
		if name != tc.name || version != tc.version {
			t.Fatalf("parseReference(%q) = (%q, %q), want (%q, %q)", tc.ref, name, version, tc.name, tc.version)
		}
	}
}

func TestResolveLiteralPassthrough(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithoutAPI(), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	value, err := fetcher.Resolve(context.Background(), "plain-value")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "plain-value" {
		t.Fatalf("expected literal passthrough, got %q", value)
	}
}

func TestResolveFallbackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	content := "# local secrets\njwt-signing-key=dev-secret\n\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	fetcher, err := NewFetcher(context.Background(), WithoutAPI(), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://jwt-signing-key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "dev-secret" {
		t.Fatalf("expected dev-secret, got %q", value)
	}

	// Cached on second resolve.
	value, err = fetcher.Resolve(context.Background(), "secret://jwt-signing-key")
	if err != nil || value != "dev-secret" {
		t.Fatalf("cached resolve failed: %q, %v", value, err)
	}

	if _, err := fetcher.Resolve(context.Background(), "secret://missing"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}
