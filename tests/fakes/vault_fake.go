package fakes

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bloombuilt/qb/internal/vault"
)

// FakeHeader marks files encrypted by FakeVault.
const FakeHeader = vault.Header + "1.1;FAKE\n"

// FakeVault is a reversible stand-in for ansible-vault: it base64-encodes
// the plaintext behind a vault header.
type FakeVault struct {
	mu sync.Mutex

	// Fail maps an operation name ("protect", "expose", "view", "edit",
	// "encrypt_string") to the error it should return
	Fail map[string]error

	// EditFunc, if set, transforms the plaintext during Edit
	EditFunc func(plain []byte) []byte

	// Calls records "<op> <target>" in order
	Calls []string
}

// NewFakeVault creates a fake with no failures configured.
func NewFakeVault() *FakeVault {
	return &FakeVault{Fail: make(map[string]error)}
}

// Encrypt returns the fake ciphertext for plain.
func Encrypt(plain []byte) []byte {
	return []byte(FakeHeader + base64.StdEncoding.EncodeToString(plain) + "\n")
}

// Decrypt reverses Encrypt.
func Decrypt(cipher []byte) ([]byte, error) {
	if !bytes.HasPrefix(cipher, []byte(FakeHeader)) {
		return nil, errors.New("ERROR! input is not vault encrypted data")
	}
	body := bytes.TrimSpace(cipher[len(FakeHeader):])
	return base64.StdEncoding.DecodeString(string(body))
}

func (f *FakeVault) begin(op, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op+" "+target)
	return f.Fail[op]
}

// Protect encrypts path in place; already-encrypted input is an error, as
// with ansible-vault.
func (f *FakeVault) Protect(_ context.Context, path string) error {
	if err := f.begin("protect", path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if bytes.HasPrefix(data, []byte(vault.Header)) {
		return errors.New("ERROR! input is already encrypted")
	}
	return os.WriteFile(path, Encrypt(data), 0o600)
}

// Expose decrypts path in place.
func (f *FakeVault) Expose(_ context.Context, path string) error {
	if err := f.begin("expose", path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	plain, err := Decrypt(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, plain, 0o600)
}

// View writes the plaintext of path to w.
func (f *FakeVault) View(_ context.Context, path string, w io.Writer) error {
	if err := f.begin("view", path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	plain, err := Decrypt(data)
	if err != nil {
		return err
	}
	_, err = w.Write(plain)
	return err
}

// Edit decrypts, applies EditFunc, and re-encrypts path.
func (f *FakeVault) Edit(_ context.Context, path string) error {
	if err := f.begin("edit", path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	plain, err := Decrypt(data)
	if err != nil {
		return err
	}
	if f.EditFunc != nil {
		plain = f.EditFunc(plain)
	}
	return os.WriteFile(path, Encrypt(plain), 0o600)
}

// EncryptString writes an inline-vault YAML value.
func (f *FakeVault) EncryptString(_ context.Context, value string, w io.Writer) error {
	if err := f.begin("encrypt_string", "[value]"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "!vault |\n  %s", Encrypt([]byte(value)))
	return err
}

// Ops returns the recorded calls.
func (f *FakeVault) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}
