// Package prompt asks the operator for field names and passwords.
package prompt

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when a prompt is needed but qb may not ask.
var ErrNonInteractive = errors.New("input required but running non-interactively")

// Prompter collects operator input.
type Prompter interface {
	Input(title string) (string, error)
	Password(title string) (string, error)
	Select(title string, options []string) (string, error)
}

// Huh prompts on the terminal using charmbracelet/huh forms.
type Huh struct{}

// NewHuh returns the terminal prompter.
func NewHuh() *Huh {
	return &Huh{}
}

// Input asks for a line of text.
func (h *Huh) Input(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		Value(&value).
		Run()
	return strings.TrimSpace(value), err
}

// Password asks for a secret without echoing it. Empty answers are refused.
func (h *Huh) Password(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("password cannot be empty")
			}
			return nil
		}).
		Value(&value).
		Run()
	return strings.TrimSpace(value), err
}

// Select asks the operator to pick one of options.
func (h *Huh) Select(title string, options []string) (string, error) {
	var value string
	err := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&value).
		Run()
	return value, err
}

// Disabled refuses every prompt. It stands in for a Prompter in
// non-interactive runs.
type Disabled struct{}

func (Disabled) Input(string) (string, error) { return "", ErrNonInteractive }

func (Disabled) Password(string) (string, error) { return "", ErrNonInteractive }

func (Disabled) Select(string, []string) (string, error) { return "", ErrNonInteractive }

// Interactive reports whether stdin is a terminal and no CI marker is set.
func Interactive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// For returns the terminal prompter when interactive, otherwise Disabled.
func For(interactive bool) Prompter {
	if interactive {
		return NewHuh()
	}
	return Disabled{}
}
