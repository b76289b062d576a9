// Package vault drives ansible-vault for every encrypt and decrypt qb does.
//
// The password is never passed on the command line. ansible-vault asks the
// qb-pass callback for it, and qb-pass resolves the field named in QB_FIELD.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"time"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/metrics"
	"github.com/bloombuilt/qb/pkg/exec"
)

// Header starts every ansible-vault encrypted file.
const Header = "$ANSIBLE_VAULT;"

// DefaultBinary is the ansible-vault executable looked up on PATH.
const DefaultBinary = "ansible-vault"

// PassGetterName is the password callback binary shipped next to qb.
const PassGetterName = "qb-pass"

// Encryptor encrypts and decrypts field artifacts.
type Encryptor interface {
	// Protect encrypts path in place.
	Protect(ctx context.Context, path string) error
	// Expose decrypts path in place.
	Expose(ctx context.Context, path string) error
	// View writes the plaintext of path to w.
	View(ctx context.Context, path string, w io.Writer) error
	// Edit opens path in the operator's editor.
	Edit(ctx context.Context, path string) error
	// EncryptString writes an inline-vault YAML value for value to w.
	EncryptString(ctx context.Context, value string, w io.Writer) error
}

// AnsibleVault shells out to ansible-vault.
type AnsibleVault struct {
	Binary     string
	PassGetter string

	// Field is exported to the child as QB_FIELD.
	Field string
	// Env is appended to the child environment after QB_FIELD.
	Env []string

	Runner  exec.Runner
	Logger  *logging.Logger
	Metrics *metrics.Recorder

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an AnsibleVault wired to the real process runner and the
// terminal.
func New(binary, passGetter, field string) *AnsibleVault {
	if binary == "" {
		binary = DefaultBinary
	}
	return &AnsibleVault{
		Binary:     binary,
		PassGetter: passGetter,
		Field:      field,
		Runner:     exec.DefaultExecutor(),
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

func (v *AnsibleVault) Protect(ctx context.Context, path string) error {
	return v.run(ctx, "encrypt", path, v.Stdout)
}

func (v *AnsibleVault) Expose(ctx context.Context, path string) error {
	return v.run(ctx, "decrypt", path, v.Stdout)
}

func (v *AnsibleVault) View(ctx context.Context, path string, w io.Writer) error {
	return v.run(ctx, "view", path, w)
}

func (v *AnsibleVault) Edit(ctx context.Context, path string) error {
	return v.run(ctx, "edit", path, v.Stdout)
}

func (v *AnsibleVault) EncryptString(ctx context.Context, value string, w io.Writer) error {
	return v.run(ctx, "encrypt_string", value, w)
}

func (v *AnsibleVault) run(ctx context.Context, verb, target string, stdout io.Writer) error {
	if v.PassGetter == "" {
		return fmt.Errorf("no password callback configured for %s %s", DefaultBinary, verb)
	}

	cmd := exec.Command{
		Name:   v.Binary,
		Args:   []string{verb, target, "--vault-password-file", v.PassGetter},
		Stdin:  v.Stdin,
		Stdout: stdout,
		Stderr: v.Stderr,
	}
	if v.Field != "" {
		cmd.Env = append(cmd.Env, "QB_FIELD="+v.Field)
	}
	cmd.Env = append(cmd.Env, v.Env...)

	line := cmd.String()
	if verb == "encrypt_string" {
		line = v.Binary + " encrypt_string [value]"
	}
	if v.Logger != nil {
		v.Logger.Debug("Running %s", line)
	}

	start := time.Now()
	err := v.Runner.Run(ctx, cmd)
	v.Metrics.Command(DefaultBinary, start)
	return qberrors.CommandFailed(DefaultBinary, line, err)
}

// IsEncrypted reports whether path starts with the ansible-vault header.
func IsEncrypted(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, len(Header))
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.Equal(buf[:n], []byte(Header)), nil
}

// PassGetter locates the qb-pass callback: override (QB_PASS_GETTER) if
// set, then a qb-pass next to the running executable, then PATH.
func PassGetter(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), PassGetterName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := osexec.LookPath(PassGetterName)
	if err != nil {
		return "", qberrors.WrapCommandNotFound(PassGetterName, err)
	}
	return path, nil
}
