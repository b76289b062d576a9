// Package field manages fields: named deployment contexts such as
// "staging" that each own a directory of playbooks and an encrypted
// app_env.
package field

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bloombuilt/qb/internal/envfile"
)

// Field is a named configuration context and its directory.
type Field struct {
	Name    string
	AppName string

	// Dir is the absolute field directory.
	Dir string
}

// New returns the Field called name inside workDir.
func New(workDir, name, appName string) Field {
	return Field{Name: name, AppName: appName, Dir: filepath.Join(workDir, name)}
}

// EnvFile returns the path of the field's app_env.
func (f Field) EnvFile() string {
	return envfile.Path(f.Dir)
}

// Playbook returns the path of <name>.yml in the field directory.
func (f Field) Playbook(name string) string {
	return filepath.Join(f.Dir, name+".yml")
}

// Inventory returns the path of the field's inventory.
func (f Field) Inventory() string {
	return filepath.Join(f.Dir, "inventory")
}

// Requirements returns the path of the field's Galaxy requirements file.
func (f Field) Requirements() string {
	return filepath.Join(f.Dir, "requirements.yml")
}

// Exists reports whether the field directory exists.
func (f Field) Exists() bool {
	info, err := os.Stat(f.Dir)
	return err == nil && info.IsDir()
}

// ValidateName rejects names that cannot be a single directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("field name cannot be empty")
	case name == "." || name == "..":
		return fmt.Errorf("field name %q is not allowed", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("field name %q must not contain a path separator", name)
	}
	return nil
}

// List returns the names of directories in workDir that look like fields
// (they contain vars/common.yml), sorted.
func List(workDir string) ([]string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(workDir, e.Name(), "vars", "common.yml")); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
