// Package render materializes chart and terraform-module template
// directories into per-service workspace directories. Template data is
// strongly typed per deployment kind; only the final file-rendering step
// is stringly typed at the template-engine boundary.
package render

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// templateExt marks files rendered through text/template. The extension is
// stripped from the destination name; all other files are copied verbatim.
const templateExt = ".tmpl"

// EnvVar is one ordered environment variable.
type EnvVar struct {
	Key   string
	Value string
}

// Storage describes one persistent volume request.
type Storage struct {
	ID          string
	Name        string
	StorageType string
	SizeInGiB   int
	MountPoint  string
}

// Route maps one HTTP path to an in-cluster service.
type Route struct {
	Path        string
	ServiceName string
	ServicePort int
}

// ApplicationContext carries the values application chart templates use.
type ApplicationContext struct {
	ID                          string
	Name                        string
	Namespace                   string
	KubeconfigPath              string
	ImageNameWithTag            string
	EnvironmentVariables        []EnvVar
	Storage                     []Storage
	CPUMilli                    int
	RAMInMiB                    int
	Replicas                    int
	ResourceExpirationInSeconds int
}

// ContainerContext carries the values container chart templates use.
// Containers run registry-supplied images rather than platform-built ones.
type ContainerContext struct {
	ID                          string
	Name                        string
	Namespace                   string
	KubeconfigPath              string
	RegistryURL                 string
	ImageNameWithTag            string
	EnvironmentVariables        []EnvVar
	Storage                     []Storage
	CPUMilli                    int
	RAMInMiB                    int
	Replicas                    int
	ResourceExpirationInSeconds int
}

// DatabaseContext carries the values database chart and terraform module
// templates use. FQDN is the in-cluster or provider-side endpoint exposed
// to applications.
type DatabaseContext struct {
	ID                          string
	Name                        string
	Namespace                   string
	KubeconfigPath              string
	Version                     string
	FQDN                        string
	Login                       string
	Password                    string
	Port                        int
	DiskSizeInGiB               int
	CPUMilli                    int
	RAMInMiB                    int
	ResourceExpirationInSeconds int
}

// RouterContext carries the values router chart templates use.
type RouterContext struct {
	ID                          string
	Name                        string
	Namespace                   string
	KubeconfigPath              string
	DefaultDomain               string
	CustomDomains               []string
	Routes                      []Route
	ResourceExpirationInSeconds int
}

// Dir renders the template directory src into dst, preserving structure.
// Files ending in .tmpl are executed against data; everything else is
// copied verbatim. dst is created if missing.
func Dir(src, dst string, data interface{}) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to resolve template path: %w", err)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}

		if strings.HasSuffix(d.Name(), templateExt) {
			return renderFile(path, strings.TrimSuffix(target, templateExt), data)
		}
		return copyFile(path, target)
	})
}

func renderFile(src, dst string, data interface{}) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", src, err)
	}

	tmpl, err := template.New(filepath.Base(src)).Parse(string(content))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", src, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if err := tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
