package observe

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"apiKey", true},
		{"ApiKey", true},
		{"api_key", true},
		{"access_token", true},
		{"Password", true},
		{"clientSecret", true},
		{"authorization", true},
		{"credentials", true},
		{"cacheKey", true},
		{"privateData", true},
		{"jwt", true},
		{"model", false},
		{"attempt", false},
		{"delay_ms", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedact_Nested(t *testing.T) {
	in := map[string]any{
		"model":  "claude",
		"apiKey": "sk-1",
		"request": map[string]any{
			"headers": map[string]string{"Authorization": "Bearer x", "Accept": "json"},
			"items":   []any{map[string]any{"token": "t"}, "plain"},
		},
		"attempts": 3,
	}

	got := Redact(in)

	want := map[string]any{
		"model":  "claude",
		"apiKey": RedactedValue,
		"request": map[string]any{
			"headers": map[string]any{"Authorization": RedactedValue, "Accept": "json"},
			"items":   []any{map[string]any{"token": RedactedValue}, "plain"},
		},
		"attempts": 3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Redact() = %#v\nwant %#v", got, want)
	}

	if in["apiKey"] != "sk-1" {
		t.Error("input must not be modified")
	}
}

func TestRedact_NonStringSensitiveValuesKept(t *testing.T) {
	got := Redact(map[string]any{"max_tokens": 1024})
	if got["max_tokens"] != 1024 {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
}

type apiKeyValue string

func TestRedact_StringLikeValues(t *testing.T) {
	secret := "sk-live-123"
	var nilSecret *string

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"named string", apiKeyValue("sk-live-123"), RedactedValue},
		{"string pointer", &secret, RedactedValue},
		{"byte slice", []byte("tok-bytes"), RedactedValue},
		{"raw json", json.RawMessage(`"sk"`), RedactedValue},
		{"nil pointer", nilSecret, nilSecret},
		{"number", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(map[string]any{"token": tt.value})["token"]
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("token = %#v, want %#v", got, tt.want)
			}
		})
	}
}

type providerSettings struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

func TestRedact_Struct(t *testing.T) {
	got := Redact(map[string]any{
		"provider": providerSettings{BaseURL: "https://api.example.com", APIKey: "sk-2"},
		"ptr":      &providerSettings{APIKey: "sk-3"},
	})

	provider, ok := got["provider"].(map[string]any)
	if !ok {
		t.Fatalf("provider = %T", got["provider"])
	}
	if provider["api_key"] != RedactedValue {
		t.Errorf("api_key = %v", provider["api_key"])
	}
	if provider["base_url"] != "https://api.example.com" {
		t.Errorf("base_url = %v", provider["base_url"])
	}
	if got["ptr"].(map[string]any)["api_key"] != RedactedValue {
		t.Error("pointer struct not redacted")
	}
}
