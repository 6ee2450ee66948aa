package target

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

type fakeProvider struct {
	env []string
}

func (f *fakeProvider) Name() string                              { return "fake" }
func (f *fakeProvider) Region() string                            { return "local" }
func (f *fakeProvider) CredentialsEnvironmentVariables() []string { return f.env }
func (f *fakeProvider) Validate(context.Context) error            { return nil }

func TestCredentialsEnv(t *testing.T) {
	tgt := &Target{Kind: SelfHosted}
	if env := tgt.CredentialsEnv(); env != nil {
		t.Fatalf("CredentialsEnv() without provider = %v, want nil", env)
	}

	tgt.Cluster.Provider = &fakeProvider{env: []string{"AWS_ACCESS_KEY_ID=abc"}}
	env := tgt.CredentialsEnv()
	if len(env) != 1 || env[0] != "AWS_ACCESS_KEY_ID=abc" {
		t.Fatalf("CredentialsEnv() = %v", env)
	}
}

func TestTTLSeconds(t *testing.T) {
	tests := []struct {
		name       string
		expiration time.Duration
		want       int
	}{
		{name: "zero", expiration: 0, want: 0},
		{name: "one hour", expiration: time.Hour, want: 3600},
		{name: "ninety minutes", expiration: 90 * time.Minute, want: 5400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := &Target{ResourceExpiration: tt.expiration}
			if got := tgt.TTLSeconds(); got != tt.want {
				t.Errorf("TTLSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPathResolution(t *testing.T) {
	tgt := &Target{Cluster: Cluster{
		TemplateDir:  "/opt/launchbay/templates",
		WorkspaceDir: "/tmp/launchbay",
	}}

	want := filepath.Join("/opt/launchbay/templates", "charts", "application")
	if got := tgt.TemplatePath("charts", "application"); got != want {
		t.Errorf("TemplatePath() = %q, want %q", got, want)
	}

	want = filepath.Join("/tmp/launchbay", "app-1")
	if got := tgt.WorkspacePath("app-1"); got != want {
		t.Errorf("WorkspacePath() = %q, want %q", got, want)
	}
}
