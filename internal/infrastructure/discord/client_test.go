package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

func testClient(server *httptest.Server) *Client {
	c := New("test-token")
	c.apiBase = server.URL
	c.http = server.Client()
	return c
}

func TestResolveChannel(t *testing.T) {
	t.Parallel()

	c := New("test-token")
	ctx := context.Background()

	id, err := c.ResolveChannel(ctx, "guild", "123456789012345678")
	if err != nil || id != "123456789012345678" {
		t.Fatalf("raw id: %q, %v", id, err)
	}

	id, err = c.ResolveChannel(ctx, "guild", "<#123456789012345678>")
	if err != nil || id != "123456789012345678" {
		t.Fatalf("mention: %q, %v", id, err)
	}

	if _, err := c.ResolveChannel(ctx, "guild", "general"); err == nil {
		t.Fatal("expected error for a channel name")
	}
}

func TestResolveRole(t *testing.T) {
	t.Parallel()

	c := New("test-token")
	ctx := context.Background()

	id, err := c.ResolveRole(ctx, "guild", "<@&42>")
	if err != nil || id != "42" {
		t.Fatalf("mention: %q, %v", id, err)
	}

	if _, err := c.ResolveRole(ctx, "guild", "<@42>"); err == nil {
		t.Fatal("expected error for a user mention")
	}
}

func TestSendAnnouncement(t *testing.T) {
	t.Parallel()

	var got messagePayload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/channels/111/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(messageResponse{ID: "999"})
	}))
	defer server.Close()

	c := testClient(server)
	id, err := c.Send(context.Background(), "111", "", &ports.Announcement{
		Title:       "UA Survey: Playtest 8",
		Description: "Class Feature, 01/15/2024",
		Body:        "Tell us what you think.",
		Color:       0x3498DB,
		RoleID:      "42",
		Nonce:       "nonce-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "999" {
		t.Fatalf("message id %q", id)
	}

	if auth != "Bot test-token" {
		t.Fatalf("authorization header %q", auth)
	}
	if got.Content != "<@&42>" {
		t.Fatalf("role mention missing from content: %q", got.Content)
	}
	if got.Nonce != "nonce-1" {
		t.Fatalf("nonce %q", got.Nonce)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "UA Survey: Playtest 8" || got.Embeds[0].Color != 0x3498DB {
		t.Fatalf("unexpected embeds: %+v", got.Embeds)
	}
}

func TestFetchMessageNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Unknown Message"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server)
	_, err := c.FetchMessage(context.Background(), "111", "999")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnpinMissingMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/channels/111/pins/999" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server)
	err := c.Unpin(context.Background(), "111", "999")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPinUsesPinsRoute(t *testing.T) {
	t.Parallel()

	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := testClient(server)
	if err := c.Pin(context.Background(), "111", "999"); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if method != http.MethodPut || path != "/channels/111/pins/999" {
		t.Fatalf("unexpected request: %s %s", method, path)
	}
}

func TestErrorResponseCarriesBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Missing Permissions"}`, http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(server)
	err := c.Edit(context.Background(), "111", "999", "updated")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Missing Permissions") {
		t.Fatalf("error body lost: %v", err)
	}
}
