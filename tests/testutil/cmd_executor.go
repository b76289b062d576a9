// Package testutil provides testing utilities for qb.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	qbexec "github.com/bloombuilt/qb/pkg/exec"
)

// MockCommandExecutor is a configurable stand-in for external tools. It
// implements both exec.CommandExecutor and exec.Runner.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made, in order.
	RecordedCalls []RecordedCall

	// StrictMode fails calls that match no response.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error

	// Hook runs before the response is returned. A non-nil error from
	// Hook replaces Err.
	Hook func(c qbexec.Command) error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Context context.Context
}

// Line renders the call as "command arg1 arg2".
func (c RecordedCall) Line() string {
	return buildKey(c.Command, c.Args)
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	resp, err := m.respond(ctx, qbexec.Command{Name: name, Args: args})
	return resp.Stdout, resp.Stderr, err
}

// Run writes the mocked output to the command's writers.
func (m *MockCommandExecutor) Run(ctx context.Context, c qbexec.Command) error {
	resp, err := m.respond(ctx, c)
	if c.Stdout != nil && len(resp.Stdout) > 0 {
		_, _ = c.Stdout.Write(resp.Stdout)
	}
	if c.Stderr != nil && len(resp.Stderr) > 0 {
		_, _ = c.Stderr.Write(resp.Stderr)
	}
	return err
}

func (m *MockCommandExecutor) respond(ctx context.Context, c qbexec.Command) (MockResponse, error) {
	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: c.Name,
		Args:    c.Args,
		Dir:     c.Dir,
		Env:     c.Env,
		Context: ctx,
	})
	resp, ok := m.lookup(buildKey(c.Name, c.Args))
	m.mu.Unlock()

	if !ok {
		if m.StrictMode {
			return MockResponse{}, fmt.Errorf("mock: no response configured for command: %s", c.String())
		}
		return MockResponse{}, nil
	}
	if resp.Hook != nil {
		if err := resp.Hook(c); err != nil {
			return resp, err
		}
	}
	return resp, resp.Err
}

// lookup prefers an exact match, then the longest matching prefix.
func (m *MockCommandExecutor) lookup(key string) (MockResponse, bool) {
	if resp, ok := m.Responses[key]; ok {
		return resp, true
	}
	best := ""
	for pattern := range m.Responses {
		if matchesPattern(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return m.Responses[best], true
	}
	if m.DefaultResponse != nil {
		return *m.DefaultResponse, true
	}
	return MockResponse{}, false
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// matchesPattern supports a trailing "*" and plain prefixes.
func matchesPattern(key, pattern string) bool {
	return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddOutput registers stdout for a command pattern.
func (m *MockCommandExecutor) AddOutput(commandPattern, stdout string) {
	m.AddResponse(commandPattern, MockResponse{Stdout: []byte(stdout)})
}

// AddErrorResponse adds an error response for a command pattern.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, err error) {
	m.AddResponse(commandPattern, MockResponse{Err: err})
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// Lines returns every recorded call as a command line.
func (m *MockCommandExecutor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.RecordedCalls))
	for _, call := range m.RecordedCalls {
		lines = append(lines, call.Line())
	}
	return lines
}

// CallCount returns the number of calls made.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// AssertCalled verifies that a specific command was called at least once.
func (m *MockCommandExecutor) AssertCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	calls := m.GetCalls(commandName)
	if len(calls) == 0 {
		t.Error("expected command", commandName, "to be called, but it was not")
		return false
	}
	return true
}

// AssertNotCalled verifies that a specific command was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	calls := m.GetCalls(commandName)
	if len(calls) > 0 {
		t.Error("expected command", commandName, "to not be called, but it was called", len(calls), "times")
		return false
	}
	return true
}
