package envfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/secure"
	"github.com/bloombuilt/qb/internal/vault"
)

// FileName is the env file inside every field directory.
const FileName = "app_env"

// Change describes what SetVariable did.
type Change struct {
	Replaced bool
	Dropped  []Line
}

// Editor changes encrypted env files without leaving plaintext at the
// original path.
type Editor struct {
	Vault  vault.Encryptor
	Logger *logging.Logger
}

// NewEditor returns an Editor using v.
func NewEditor(v vault.Encryptor, logger *logging.Logger) *Editor {
	return &Editor{Vault: v, Logger: logger}
}

// Path returns the env file of the field directory fieldDir.
func Path(fieldDir string) string {
	return filepath.Join(fieldDir, FileName)
}

// SetVariable assigns name=value in the env file at path.
//
// The work happens on a sibling copy: the copy is decrypted, edited,
// re-encrypted and renamed over path. On failure the copy is shredded and
// path is left as it was.
func (e *Editor) SetVariable(ctx context.Context, path, name, value string) (Change, error) {
	if err := ValidateName(name); err != nil {
		return Change{}, err
	}
	if err := ValidateValue(value); err != nil {
		return Change{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Change{}, qberrors.TargetMissing("env file", path)
		}
		return Change{}, err
	}
	encrypted, err := vault.IsEncrypted(path)
	if err != nil {
		return Change{}, err
	}

	tmp, err := copyToTemp(path)
	if err != nil {
		return Change{}, err
	}
	done := false
	defer func() {
		if !done {
			if err := secure.Shred(tmp, secure.DefaultPasses); err != nil && e.Logger != nil {
				e.Logger.Warn("Could not remove temporary copy %s: %v", tmp, err)
			}
		}
	}()

	if encrypted {
		if err := e.Vault.Expose(ctx, tmp); err != nil {
			return Change{}, err
		}
	} else if e.Logger != nil {
		e.Logger.Warn("%s is not encrypted; it will be encrypted now", path)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return Change{}, err
	}
	bundle := ParseBytes(data)
	replaced, err := bundle.Set(name, value)
	if err != nil {
		return Change{}, err
	}
	if err := os.WriteFile(tmp, bundle.Bytes(), 0o600); err != nil {
		return Change{}, err
	}

	if err := e.Vault.Protect(ctx, tmp); err != nil {
		return Change{}, err
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		return Change{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return Change{}, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	done = true

	if e.Logger != nil {
		for _, l := range bundle.Dropped {
			e.Logger.Warn("Removed duplicate assignment of %s", l.Name)
		}
	}
	return Change{Replaced: replaced, Dropped: bundle.Dropped}, nil
}

// Show writes the decrypted env file at path to w.
func (e *Editor) Show(ctx context.Context, path string, w io.Writer) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return qberrors.TargetMissing("env file", path)
	}
	return e.Vault.View(ctx, path, w)
}

// Edit opens the env file at path in the operator's editor.
func (e *Editor) Edit(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return qberrors.TargetMissing("env file", path)
	}
	return e.Vault.Edit(ctx, path)
}

// copyToTemp copies path to a new 0600 file in the same directory.
func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary copy: %w", err)
	}
	name := dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
