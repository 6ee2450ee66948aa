package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func TestDirRendersTemplatesAndCopiesRest(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "Chart.yaml"), "name: app\nversion: 0.1.0\n")
	writeFile(t, filepath.Join(src, "values.yaml.tmpl"),
		"namespace: {{ .Namespace }}\nimage: {{ .ImageNameWithTag }}\n"+
			"env:\n{{ range .EnvironmentVariables }}  {{ .Key }}: {{ .Value }}\n{{ end }}")
	writeFile(t, filepath.Join(src, "templates", "deployment.yaml"), "kind: Deployment\n")

	data := ApplicationContext{
		Name:             "storefront",
		Namespace:        "proj1-env1",
		ImageNameWithTag: "registry.example.com/storefront:v1",
		EnvironmentVariables: []EnvVar{
			{Key: "PORT", Value: "8080"},
			{Key: "MODE", Value: "production"},
		},
	}

	if err := Dir(src, dst, data); err != nil {
		t.Fatalf("Dir() error = %v", err)
	}

	if got := readFile(t, filepath.Join(dst, "Chart.yaml")); got != "name: app\nversion: 0.1.0\n" {
		t.Errorf("non-template file not copied verbatim: %q", got)
	}

	values := readFile(t, filepath.Join(dst, "values.yaml"))
	if !strings.Contains(values, "namespace: proj1-env1") {
		t.Errorf("values.yaml missing namespace: %q", values)
	}
	if !strings.Contains(values, "image: registry.example.com/storefront:v1") {
		t.Errorf("values.yaml missing image: %q", values)
	}
	if !strings.Contains(values, "PORT: 8080") || !strings.Contains(values, "MODE: production") {
		t.Errorf("values.yaml missing env vars: %q", values)
	}

	if _, err := os.Stat(filepath.Join(dst, "values.yaml.tmpl")); !os.IsNotExist(err) {
		t.Error("template extension should be stripped in destination")
	}
	if got := readFile(t, filepath.Join(dst, "templates", "deployment.yaml")); got != "kind: Deployment\n" {
		t.Errorf("nested file not copied: %q", got)
	}
}

func TestDirOrderedEnvironmentVariables(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "env.tmpl"),
		"{{ range .EnvironmentVariables }}{{ .Key }}\n{{ end }}")

	data := ApplicationContext{
		EnvironmentVariables: []EnvVar{
			{Key: "FIRST"}, {Key: "SECOND"}, {Key: "THIRD"},
		},
	}

	if err := Dir(src, dst, data); err != nil {
		t.Fatalf("Dir() error = %v", err)
	}

	got := readFile(t, filepath.Join(dst, "env"))
	want := "FIRST\nSECOND\nTHIRD\n"
	if got != want {
		t.Errorf("env order = %q, want %q", got, want)
	}
}

func TestDirDatabaseContext(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "main.tf.tmpl"),
		`resource "aws_db_instance" "{{ .Name }}" {`+"\n"+
			`  identifier = "{{ .ID }}"`+"\n"+
			`  username   = "{{ .Login }}"`+"\n"+
			`  port       = {{ .Port }}`+"\n"+
			`  allocated_storage = {{ .DiskSizeInGiB }}`+"\n"+
			"}\n")

	data := DatabaseContext{
		ID:            "db1",
		Name:          "orders",
		Login:         "superuser",
		Port:          5432,
		DiskSizeInGiB: 20,
	}

	if err := Dir(src, dst, data); err != nil {
		t.Fatalf("Dir() error = %v", err)
	}

	tf := readFile(t, filepath.Join(dst, "main.tf"))
	for _, want := range []string{`identifier = "db1"`, `username   = "superuser"`, "port       = 5432", "allocated_storage = 20"} {
		if !strings.Contains(tf, want) {
			t.Errorf("main.tf missing %q:\n%s", want, tf)
		}
	}
}

func TestDirInvalidTemplate(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "bad.tmpl"), "{{ .Unclosed")

	err := Dir(src, dst, ApplicationContext{})
	if err == nil {
		t.Fatal("Dir() expected error for invalid template, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse template") {
		t.Errorf("error = %v, want parse failure", err)
	}
}
