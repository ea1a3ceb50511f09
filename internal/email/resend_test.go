package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dukerupert/homewise/internal/logging"
)

// rewriteTransport redirects all requests to a test server.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u, _ := url.Parse(t.target)
	req.URL.Scheme = u.Scheme
	req.URL.Host = u.Host
	return t.base.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport := &rewriteTransport{base: http.DefaultTransport, target: server.URL}
	return NewClient("re_test", "Homewise <no-reply@home-wise.app>",
		WithHTTPClient(&http.Client{Transport: transport}),
		WithLogger(logging.Discard()),
	)
}

func TestSend(t *testing.T) {
	var received resendEmail
	var gotAuth, gotPath string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "email-id"}`))
	})

	err := client.Send(context.Background(), Message{
		To:      "b@test.com",
		Subject: "Hello",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAuth != "Bearer re_test" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer re_test")
	}
	if gotPath != "/emails" {
		t.Errorf("path = %q, want /emails", gotPath)
	}
	if len(received.To) != 1 || received.To[0] != "b@test.com" {
		t.Errorf("To = %v, want [b@test.com]", received.To)
	}
	if received.From != "Homewise <no-reply@home-wise.app>" {
		t.Errorf("From = %q", received.From)
	}
	if received.Text != "hi" {
		t.Errorf("Text = %q, want hi", received.Text)
	}
}

func TestSendAPIError(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"message": "nope"}`))
		})

		err := client.Send(context.Background(), Message{To: "b@test.com", Subject: "x"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: err = %v, want *APIError", tt.status, err)
		}
		if apiErr.StatusCode != tt.status {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
		}
		if apiErr.Temporary() != tt.temporary {
			t.Errorf("status %d: Temporary() = %v, want %v", tt.status, apiErr.Temporary(), tt.temporary)
		}
		if !strings.Contains(apiErr.Error(), "nope") {
			t.Errorf("error %q should include response body", apiErr.Error())
		}
	}
}

func TestSendNotConfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient("", "noreply@example.com", WithEndpoint(server.URL), WithLogger(logging.Discard()))
	if client.Configured() {
		t.Fatal("client without API key should not be configured")
	}
	if err := client.Send(context.Background(), Message{To: "b@test.com"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if called {
		t.Error("unconfigured client must not call the API")
	}
}

func TestJoinHousehold(t *testing.T) {
	link := "https://app.test/join-household?token=abc.def-ghi"
	msg, err := JoinHousehold("b@test.com", JoinHouseholdData{
		HouseholdName: "Doe's Home",
		InviteeEmail:  "b@test.com",
		Role:          "adult",
		URL:           link,
		ExpiresIn:     "24 hours",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if msg.Subject != `Join "Doe's Home" household` {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.To != "b@test.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Text, link) {
		t.Errorf("text body missing link:\n%s", msg.Text)
	}
	if !strings.Contains(msg.HTML, `href="`+link+`"`) {
		t.Errorf("html body missing link:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "Doe&#39;s Home") {
		t.Errorf("html body should escape household name:\n%s", msg.HTML)
	}
}

func TestVerifyEmail(t *testing.T) {
	msg, err := VerifyEmail("a@test.com", VerifyEmailData{UserName: "Alice", URL: "https://api.test/auth/verify-email?token=t"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.Text, "Howdy Alice") {
		t.Errorf("text body = %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, "https://api.test/auth/verify-email?token=t") {
		t.Errorf("html body missing link")
	}
}
