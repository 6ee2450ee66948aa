package scaleway

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func complete() map[string]string {
	return map[string]string{
		"access_key": "SCWXXX",
		"secret_key": "secret",
		"project_id": "proj-uuid",
		"region":     "fr-par",
		"zone":       "fr-par-1",
	}
}

func TestCredentialsEnvironmentVariables(t *testing.T) {
	p, err := New(complete())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []string{
		"SCW_ACCESS_KEY=SCWXXX",
		"SCW_SECRET_KEY=secret",
		"SCW_DEFAULT_PROJECT_ID=proj-uuid",
		"SCW_DEFAULT_REGION=fr-par",
		"SCW_DEFAULT_ZONE=fr-par-1",
	}
	if got := p.CredentialsEnvironmentVariables(); !reflect.DeepEqual(got, want) {
		t.Errorf("CredentialsEnvironmentVariables() = %v, want %v", got, want)
	}
}

func TestZoneOptional(t *testing.T) {
	settings := complete()
	delete(settings, "zone")
	p, err := New(settings)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, env := range p.CredentialsEnvironmentVariables() {
		if strings.HasPrefix(env, "SCW_DEFAULT_ZONE=") {
			t.Errorf("zone env should be omitted when unset, got %v", env)
		}
	}
	if err := p.Validate(context.Background()); err != nil {
		t.Errorf("Validate() error = %v, zone should be optional", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		drop   string
		errMsg string
	}{
		{name: "missing access key", drop: "access_key", errMsg: "access_key is required"},
		{name: "missing secret key", drop: "secret_key", errMsg: "secret_key is required"},
		{name: "missing project", drop: "project_id", errMsg: "project_id is required"},
		{name: "missing region", drop: "region", errMsg: "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := complete()
			delete(settings, tt.drop)
			p, err := New(settings)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			err = p.Validate(context.Background())
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}
