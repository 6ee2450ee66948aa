package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoJSONRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/api/engine/step" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization = %q", got)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("body decode error = %v", err)
		}
		if req["step"] != "deploy" {
			t.Errorf("step = %q", req["step"])
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer server.Close()

	c := NewBaseClient(server.URL+"/", 5*time.Second)
	c.SetHeader("Authorization", "Bearer token-1")

	var resp struct {
		Success bool `json:"success"`
	}
	err := c.DoJSON(context.Background(), http.MethodPut, "api/engine/step",
		map[string]string{"step": "deploy"}, &resp)
	if err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if !resp.Success {
		t.Error("response not decoded")
	}
}

func TestDoJSONServerErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown execution id"})
	}))
	defer server.Close()

	c := NewBaseClient(server.URL, 5*time.Second)
	err := c.DoJSON(context.Background(), http.MethodGet, "/api/engine/step", nil, nil)
	if err == nil {
		t.Fatal("DoJSON() expected error")
	}
	if !strings.Contains(err.Error(), "status 400") || !strings.Contains(err.Error(), "unknown execution id") {
		t.Errorf("error = %v, want status and server message", err)
	}
}

func TestDoJSONRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewBaseClient(server.URL, 5*time.Second)
	c.httpClient.RetryWaitMin = time.Millisecond
	c.httpClient.RetryWaitMax = 2 * time.Millisecond

	if err := c.DoJSON(context.Background(), http.MethodGet, "/health", nil, nil); err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
