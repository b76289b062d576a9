// Package envfile edits the shell-style app_env file of a field.
//
// A Bundle keeps every line of the file in order. Assignments are
// understood; every other line (comments, blanks, anything else) is kept
// byte for byte.
package envfile

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var assignment = regexp.MustCompile(`^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Line is one line of an env file.
type Line struct {
	Raw string

	// Name and Value are set for assignment lines only.
	Name  string
	Value string
}

// IsAssignment reports whether the line assigns a variable.
func (l Line) IsAssignment() bool {
	return l.Name != ""
}

// Var is a name/value pair in file order.
type Var struct {
	Name  string
	Value string
}

// Bundle is a parsed env file.
type Bundle struct {
	Lines []Line

	// Dropped holds duplicate assignments removed by the last Set.
	Dropped []Line

	trailingNewline bool
}

// Parse reads an env file. An empty input is treated as ending in a
// newline so appended assignments are newline-terminated.
func Parse(r io.Reader) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return ParseBytes(data), nil
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(data []byte) *Bundle {
	b := &Bundle{trailingNewline: len(data) == 0 || bytes.HasSuffix(data, []byte("\n"))}
	if len(data) == 0 {
		return b
	}

	text := string(data)
	if b.trailingNewline {
		text = text[:len(text)-1]
	}
	for _, raw := range strings.Split(text, "\n") {
		b.Lines = append(b.Lines, parseLine(raw))
	}
	return b
}

func parseLine(raw string) Line {
	m := assignment.FindStringSubmatch(strings.TrimSuffix(raw, "\r"))
	if m == nil {
		return Line{Raw: raw}
	}
	return Line{Raw: raw, Name: m[1], Value: m[2]}
}

// ValidateName checks name is a shell variable name.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid variable name %q: use letters, digits and underscores, not starting with a digit", name)
	}
	return nil
}

// ValidateValue rejects values that would break the line structure.
func ValidateValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("variable values cannot contain line breaks")
	}
	return nil
}

// Set assigns value to name. The first assignment whose name matches
// case-insensitively is rewritten as "export NAME=VALUE" and later ones are
// removed into Dropped. With no match the assignment is appended.
func (b *Bundle) Set(name, value string) (replaced bool, err error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	if err := ValidateValue(value); err != nil {
		return false, err
	}

	b.Dropped = nil
	line := Line{Raw: "export " + name + "=" + value, Name: name, Value: value}

	kept := make([]Line, 0, len(b.Lines)+1)
	for _, l := range b.Lines {
		if !l.IsAssignment() || !strings.EqualFold(l.Name, name) {
			kept = append(kept, l)
			continue
		}
		if replaced {
			b.Dropped = append(b.Dropped, l)
			continue
		}
		kept = append(kept, line)
		replaced = true
	}
	if !replaced {
		kept = append(kept, line)
	}
	b.Lines = kept
	return replaced, nil
}

// Get returns the value of the first assignment to name.
func (b *Bundle) Get(name string) (string, bool) {
	for _, l := range b.Lines {
		if l.IsAssignment() && strings.EqualFold(l.Name, name) {
			return l.Value, true
		}
	}
	return "", false
}

// Vars returns every assignment in file order.
func (b *Bundle) Vars() []Var {
	var vars []Var
	for _, l := range b.Lines {
		if l.IsAssignment() {
			vars = append(vars, Var{Name: l.Name, Value: l.Value})
		}
	}
	return vars
}

// Bytes renders the bundle.
func (b *Bundle) Bytes() []byte {
	var buf bytes.Buffer
	for i, l := range b.Lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(l.Raw)
	}
	if b.trailingNewline && len(b.Lines) > 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
