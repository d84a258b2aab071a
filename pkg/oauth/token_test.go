package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestAcquireClientCredentials tests that the grant uses Basic auth and the
// client_credentials grant type and that the bundle carries the provider's
// tokens.
func TestAcquireClientCredentials(t *testing.T) {
	var gotGrantType, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotGrantType = r.PostFormValue("grant_type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":7200,"token_type":"bearer"}`))
	}))
	defer server.Close()

	before := time.Now().UTC().Truncate(time.Second)
	bundle, err := Acquire(context.Background(), Config{
		ClientID:     "consumer",
		ClientSecret: "s3cret",
		TokenURL:     server.URL,
	}, []string{"alokit-innovations-test"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	after := time.Now().UTC().Add(time.Second)

	if gotUser != "consumer" || gotPass != "s3cret" {
		t.Fatalf("expected basic auth credentials, got %q/%q", gotUser, gotPass)
	}
	if gotGrantType != "client_credentials" {
		t.Fatalf("expected client_credentials grant, got %q", gotGrantType)
	}
	if bundle.AccessToken != "tok" || bundle.RefreshToken != "ref" {
		t.Fatalf("unexpected tokens: %+v", bundle)
	}
	if len(bundle.WorkspaceSlug) != 1 || bundle.WorkspaceSlug[0] != "alokit-innovations-test" {
		t.Fatalf("unexpected workspace slugs: %v", bundle.WorkspaceSlug)
	}

	expiry, err := ParseExpiresAt(bundle.ExpiresAt)
	if err != nil {
		t.Fatalf("parse expires_at %q: %v", bundle.ExpiresAt, err)
	}
	want := 7200 * time.Second
	if expiry.Before(before.Add(want)) || expiry.After(after.Add(want)) {
		t.Fatalf("expires_at %v outside window [%v, %v]", expiry, before.Add(want), after.Add(want))
	}
}

// TestAcquireExpiresAtFormat tests the exact second-precision UTC layout.
func TestAcquireExpiresAtFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":60}`))
	}))
	defer server.Close()

	bundle, err := Acquire(context.Background(), Config{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", bundle.ExpiresAt); err != nil {
		t.Fatalf("expires_at %q does not match YYYY-MM-DDTHH:MM:SSZ: %v", bundle.ExpiresAt, err)
	}
}

// TestAcquireFailsOnErrorStatus tests that a non-2xx token response is an
// error with no retry.
func TestAcquireFailsOnErrorStatus(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := Acquire(context.Background(), Config{ClientID: "id", ClientSecret: "bad", TokenURL: server.URL}, nil); err == nil {
		t.Fatalf("expected error for unauthorized token response")
	}
	if calls != 1 {
		t.Fatalf("expected a single token request, got %d", calls)
	}
}

// TestAcquireRequiresCredentials tests that empty credentials fail before any
// request is made.
func TestAcquireRequiresCredentials(t *testing.T) {
	if _, err := Acquire(context.Background(), Config{}, nil); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

// TestAuthInfoJSON tests the serialized auth_info shape.
func TestAuthInfoJSON(t *testing.T) {
	bundle := TokenBundle{
		AccessToken:   "tok",
		ExpiresAt:     "2026-01-02T03:04:05Z",
		RefreshToken:  "ref",
		WorkspaceSlug: []string{"ws"},
	}
	raw, err := bundle.AuthInfoJSON()
	if err != nil {
		t.Fatalf("auth info json: %v", err)
	}
	want := `{"access_token":"tok","expires_at":"2026-01-02T03:04:05Z","refresh_token":"ref","workspace_slug":["ws"]}`
	if raw != want {
		t.Fatalf("unexpected auth_info:\n got %s\nwant %s", raw, want)
	}
}
