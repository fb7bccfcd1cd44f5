package llm

import (
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{}); err == nil {
		t.Fatalf("expected error when API key is missing")
	}
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	t.Parallel()

	client, err := NewClient(ClientOptions{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client.BaseURL() != openRouterBaseURL {
		t.Fatalf("expected base URL %q, got %q", openRouterBaseURL, client.BaseURL())
	}

	custom, err := NewClient(ClientOptions{APIKey: "key", BaseURL: " http://localhost:11434/v1 "})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if custom.BaseURL() != "http://localhost:11434/v1" {
		t.Fatalf("expected trimmed custom base URL, got %q", custom.BaseURL())
	}
}
