package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("AIRELAY_TEST_HOST", "redis")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "localhost", "localhost", false},
		{"braced", "${AIRELAY_TEST_HOST}:6379", "redis:6379", false},
		{"escaped dollar", "pa$$word", "pa$word", false},
		{"missing", "${AIRELAY_TEST_NOPE}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandEnvStrict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:env:API_KEY", "env", "API_KEY", true},
		{"secretref:file:/run/secrets/key", "file", "/run/secrets/key", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"sk-plain", "", "", false},
	}

	for _, tt := range tests {
		p, r, ok := ParseSecretRef(tt.in)
		if p != tt.provider || r != tt.ref || ok != tt.ok {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v", tt.in, p, r, ok)
		}
	}
}

func TestResolveValue(t *testing.T) {
	t.Setenv("AIRELAY_TEST_SECRET", "s3cret")
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("from-file\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"literal", "value", "value", nil},
		{"env ref", "secretref:env:AIRELAY_TEST_SECRET", "s3cret", nil},
		{"file ref", "secretref:file:" + keyFile, "from-file", nil},
		{"expanded then resolved", "secretref:file:${AIRELAY_TEST_DIR}/key", "from-file", nil},
		{"unset env ref", "secretref:env:AIRELAY_TEST_UNSET", "", ErrMissingEnv},
		{"unknown provider", "secretref:vault:kv/key", "", ErrUnknownSecretProvider},
	}
	t.Setenv("AIRELAY_TEST_DIR", dir)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveValue(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("ResolveValue() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveValue() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := ResolveValue("secretref:file:" + emptyFile); err == nil {
		t.Error("empty secret file should fail")
	}
}
