package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "token", nil); err == nil {
		t.Error("NewClient() with empty URL expected error")
	}
	if _, err := NewClient("https://cp.example.com", "", nil); err == nil {
		t.Error("NewClient() with empty token expected error")
	}
}

func TestUpdateStep(t *testing.T) {
	var got StepUpdate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/engine/deployment-step" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode error = %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "token-1", hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	update := StepUpdate{
		ExecutionID: "exec-1",
		ServiceID:   "za8fd219",
		Step:        StepDeploy,
		Status:      StepCompleted,
	}
	if err := c.UpdateStep(context.Background(), update); err != nil {
		t.Fatalf("UpdateStep() error = %v", err)
	}
	if got != update {
		t.Errorf("server received %+v, want %+v", got, update)
	}
}

func TestUpdateStepValidation(t *testing.T) {
	c, err := NewClient("https://cp.example.com", "token", hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	tests := []struct {
		name   string
		update StepUpdate
	}{
		{name: "missing execution id", update: StepUpdate{ServiceID: "s", Step: StepDeploy, Status: StepCompleted}},
		{name: "missing service id", update: StepUpdate{ExecutionID: "e", Step: StepDeploy, Status: StepCompleted}},
		{name: "missing step", update: StepUpdate{ExecutionID: "e", ServiceID: "s", Status: StepCompleted}},
		{name: "missing status", update: StepUpdate{ExecutionID: "e", ServiceID: "s", Step: StepDeploy}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.UpdateStep(context.Background(), tt.update); err == nil {
				t.Error("UpdateStep() expected validation error")
			}
		})
	}
}

func TestAskDomain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/engine/ask-domain" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("serviceId"); got != "rt77aa01" {
			t.Errorf("serviceId = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"domain": "edge.env1.example.com"})
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "token-1", hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	domain, err := c.AskDomain(context.Background(), "rt77aa01")
	if err != nil {
		t.Fatalf("AskDomain() error = %v", err)
	}
	if domain != "edge.env1.example.com" {
		t.Errorf("domain = %q", domain)
	}
}
