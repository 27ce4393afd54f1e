package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientAuthAndSinceQuery(t *testing.T) {
	var gotAuth, gotSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSince = r.URL.Query().Get("updated_since")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := New(server.URL, "token-123", server.Client())
	since := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if _, err := c.ListSessions(context.Background(), since); err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotSince != since.Format(time.RFC3339Nano) {
		t.Errorf("expected updated_since %s, got %q", since.Format(time.RFC3339Nano), gotSince)
	}

	// A zero since sends no query at all.
	gotSince = "unset"
	if _, err := c.ListSessions(context.Background(), time.Time{}); err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if gotSince != "" {
		t.Errorf("expected no updated_since for zero time, got %q", gotSince)
	}
}

func TestUpsertSessionReturnsServerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var rec SessionRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		rec.ID = "srv-1"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}))
	defer server.Close()

	c := New(server.URL, "t", server.Client())
	out, err := c.UpsertSession(context.Background(), SessionRecord{
		LocalID:         "s1",
		Type:            "FOCUS",
		DurationSeconds: 1500,
		CompletedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}
	if out.ID != "srv-1" || out.LocalID != "s1" {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestDeleteIdempotentOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(server.URL, "t", server.Client())
	if err := c.DeleteSession(context.Background(), "gone"); err != nil {
		t.Errorf("expected 404 treated as success, got %v", err)
	}
	if err := c.DeleteProject(context.Background(), "gone"); err != nil {
		t.Errorf("expected 404 treated as success, got %v", err)
	}
}

func TestStatusErrorSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("token expired"))
	}))
	defer server.Close()

	c := New(server.URL, "t", server.Client())
	_, err := c.ListProjects(context.Background(), time.Time{})
	if err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestGetSettingsMissingDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(server.URL, "t", server.Client())
	rec, err := c.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("expected missing document to be nil, nil; got err %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestPutSettingsRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/settings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var rec SettingsRecord
		json.NewDecoder(r.Body).Decode(&rec)
		rec.UpdatedAt = time.Now().UTC()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}))
	defer server.Close()

	c := New(server.URL, "t", server.Client())
	out, err := c.PutSettings(context.Background(), SettingsRecord{
		Values: map[string]string{"theme": "dark"},
	})
	if err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}
	if out.Values["theme"] != "dark" {
		t.Errorf("unexpected response: %+v", out)
	}
	if out.UpdatedAt.IsZero() {
		t.Error("expected server timestamp in response")
	}
}
