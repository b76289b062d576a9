package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// StateFile is the name of the per-workspace file recording the active field.
const StateFile = ".qb"

// stateSchema accepts both the YAML state written by qb and the JSON state
// written by earlier releases, where an unset app name was null.
const stateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "field":    { "type": ["string", "null"] },
    "app_name": { "type": ["string", "null"] }
  }
}`

// State is the persisted active-field selection.
type State struct {
	Field   string `yaml:"field"`
	AppName string `yaml:"app_name,omitempty"`

	// Degraded explains why an existing state file was ignored. It is
	// never persisted.
	Degraded string `yaml:"-"`

	// Overridden is set when the field came from QB_FIELD for this run.
	Overridden bool `yaml:"-"`
}

// Active reports whether a field is selected.
func (s State) Active() bool {
	return strings.TrimSpace(s.Field) != ""
}

// LoadState reads the state file in dir. A missing, unreadable or corrupt
// file yields an empty State rather than an error; the reason for ignoring
// an existing file is recorded in State.Degraded.
func LoadState(dir string) State {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}
		}
		return State{Degraded: fmt.Sprintf("unreadable state file: %v", err)}
	}

	state, err := parseState(data)
	if err != nil {
		return State{Degraded: err.Error()}
	}
	return state
}

func parseState(data []byte) (State, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("invalid state file: %w", err)
	}
	if doc == nil {
		return State{}, nil
	}

	if err := validateState(doc); err != nil {
		return State{}, err
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("invalid state file: %w", err)
	}
	return state, nil
}

func validateState(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal state for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(stateSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("state schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("state file failed validation: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}

// SaveState atomically replaces the state file in dir.
func SaveState(dir string, s State) error {
	data, err := yaml.Marshal(State{Field: s.Field, AppName: s.AppName})
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, StateFile+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, StateFile)); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
