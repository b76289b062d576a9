package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Sentinel errors for the failure classes qb reports to operators.
var (
	// ErrNotConfigured means no active field is selected, or its credential
	// could not be resolved.
	ErrNotConfigured = errors.New("no active field configured")

	// ErrTargetMissing means a referenced field directory or file does not exist.
	ErrTargetMissing = errors.New("target does not exist")

	// ErrDirtyTree means the git working tree has uncommitted or unpushed
	// changes and a deploy-class run was refused.
	ErrDirtyTree = errors.New("working tree is not clean")
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a failed external command. ExitCode carries the
// child's exit status so the CLI can exit with the same code.
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
	Err        error
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e CommandError) Unwrap() error {
	return e.Err
}

// NotConfigured builds the instructive error returned when no field is active.
func NotConfigured() error {
	return UserError{
		Message:    "Yikes, there is no active field for this project",
		Suggestion: "Run 'qb init' to create a field, or 'qb field switch <name>' to activate an existing one",
		Err:        ErrNotConfigured,
	}
}

// TargetMissing builds the error for a field directory or file that does not exist.
func TargetMissing(what, path string) error {
	return UserError{
		Message:    fmt.Sprintf("Can't find %s %s", what, path),
		Suggestion: "Check the name, or run 'qb field new' to scaffold the field first",
		Err:        ErrTargetMissing,
	}
}

// BackendError enhances credential backend errors with context
func BackendError(backend string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s credential backend error during %s", backend, operation),
		Details:    err.Error(),
		Suggestion: getBackendSuggestion(backend, err),
		Err:        err,
	}
}

// getBackendSuggestion returns helpful suggestions based on backend and error
func getBackendSuggestion(backend string, err error) string {
	errStr := err.Error()

	switch backend {
	case "keyring":
		if strings.Contains(errStr, "org.freedesktop.secrets") || strings.Contains(errStr, "dbus") {
			return "Start a Secret Service provider (gnome-keyring, KWallet) or set QB_PASS for headless runs"
		}
		if strings.Contains(errStr, "unsupported platform") {
			return "Use QB_CREDENTIAL_BACKEND to select a cloud backend, or set QB_PASS"
		}

	case "aws-secretsmanager", "aws-ssm":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for reading and writing the qb secret"
		}

	case "gcp-secretmanager":
		if strings.Contains(errStr, "PermissionDenied") || strings.Contains(errStr, "permission") {
			return "Grant roles/secretmanager.admin or run 'gcloud auth application-default login'"
		}

	case "azure-keyvault":
		if strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "403") {
			return "Check the Key Vault access policy for secret get/set permissions"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and backend configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"ansible-vault":    "Install Ansible: 'pipx install --include-deps ansible'",
		"ansible-playbook": "Install Ansible: 'pipx install --include-deps ansible'",
		"ansible-galaxy":   "Install Ansible: 'pipx install --include-deps ansible'",
		"git":              "Install Git from https://git-scm.com/",
		"qb-pass":          "Install qb-pass next to qb, or point QB_PASS_GETTER at it",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
		Err:        err,
	}
}

// CommandFailed converts the error from running an external tool into a
// CommandError. line is the rendered command line.
func CommandFailed(tool, line string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return WrapCommandNotFound(tool, err)
	}

	cmdErr := CommandError{Command: line, Err: err}
	var exited interface{ ExitCode() int }
	if errors.As(err, &exited) && exited.ExitCode() > 0 {
		cmdErr.ExitCode = exited.ExitCode()
	} else {
		cmdErr.Message = err.Error()
	}
	return cmdErr
}

// ExitCode extracts the process exit code carried by err. It returns 1 for
// any error that does not carry a child exit status and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	var cfgErr ConfigError
	var cmdErr CommandError
	if errors.As(err, &userErr) || errors.As(err, &cfgErr) || errors.As(err, &cmdErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
