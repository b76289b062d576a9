package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bloombuilt/qb/internal/credentials"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/metrics"
)

// Environment variables read by qb and qb-pass.
const (
	EnvPass       = "QB_PASS"
	EnvField      = "QB_FIELD"
	EnvBackend    = "QB_CREDENTIAL_BACKEND"
	EnvAWSRegion  = "QB_AWS_REGION"
	EnvEndpoint   = "QB_BACKEND_ENDPOINT"
	EnvAWSKeyID   = "QB_AWS_ACCESS_KEY_ID"
	EnvAWSSecret  = "QB_AWS_SECRET_ACCESS_KEY"
	EnvGCPProject = "QB_GCP_PROJECT"
	EnvAzureVault = "QB_AZURE_VAULT_URL"
	EnvPrefix     = "QB_SECRET_PREFIX"
	EnvPassGetter = "QB_PASS_GETTER"
	EnvVaultBin   = "QB_VAULT_BIN"
	EnvMetrics    = "QB_METRICS_FILE"
)

// DefaultBackend is the credential backend used when none is configured.
const DefaultBackend = "keyring"

// Config holds the runtime configuration. It is built once per invocation
// and passed explicitly to every command.
type Config struct {
	WorkDir        string
	Logger         *logging.Logger
	Metrics        *metrics.Recorder
	NonInteractive bool

	// Workspace is the derived identity of WorkDir.
	Workspace string

	// State is the active field selection after overrides.
	State State

	// PasswordOverride replaces credential store lookups when non-empty.
	PasswordOverride logging.Secret

	Backend BackendConfig

	MetricsFile string
	VaultBinary string
	PassGetter  string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// BackendConfig selects and configures the credential store.
type BackendConfig struct {
	Name     string
	Region   string
	Endpoint string
	Project  string
	VaultURL string
	Prefix   string

	// Static AWS keys, for LocalStack and similar endpoints.
	AccessKeyID     string
	SecretAccessKey logging.Secret
}

// StoreOptions maps the backend settings onto credentials.Options.
func (b BackendConfig) StoreOptions() credentials.Options {
	return credentials.Options{
		Backend:         b.Name,
		Region:          b.Region,
		Endpoint:        b.Endpoint,
		Project:         b.Project,
		VaultURL:        b.VaultURL,
		Prefix:          b.Prefix,
		AccessKeyID:     b.AccessKeyID,
		SecretAccessKey: b.SecretAccessKey.Reveal(),
	}
}

// Load derives the workspace identity, reads the state file and applies
// environment overrides. Values already set on c (from flags) win over
// the environment.
func (c *Config) Load() error {
	if c.Getenv == nil {
		c.Getenv = os.Getenv
	}
	if c.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		c.WorkDir = wd
	}
	if c.Logger == nil {
		c.Logger = logging.New(false, true)
	}

	workspace, err := WorkspaceID(c.WorkDir)
	if err != nil {
		return err
	}
	c.Workspace = workspace

	c.State = LoadState(c.WorkDir)
	if c.State.Degraded != "" {
		c.Logger.Debug("Ignoring %s: %s", StateFile, c.State.Degraded)
	}

	c.ApplyOverrides()
	return nil
}

// ApplyOverrides folds per-invocation environment overrides into c
// without touching the state file.
func (c *Config) ApplyOverrides() {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if field := strings.TrimSpace(getenv(EnvField)); field != "" {
		c.State.Field = field
		c.State.Overridden = true
	}

	if pass := getenv(EnvPass); strings.TrimSpace(pass) != "" {
		c.PasswordOverride = logging.Secret(strings.TrimSpace(pass))
		if c.Logger != nil {
			c.Logger.Redact(c.PasswordOverride.Reveal())
		}
	}

	setDefault(&c.Backend.Name, getenv(EnvBackend))
	setDefault(&c.Backend.Name, DefaultBackend)
	setDefault(&c.Backend.Region, getenv(EnvAWSRegion))
	setDefault(&c.Backend.Endpoint, getenv(EnvEndpoint))
	setDefault(&c.Backend.Project, getenv(EnvGCPProject))
	setDefault(&c.Backend.VaultURL, getenv(EnvAzureVault))
	setDefault(&c.Backend.Prefix, getenv(EnvPrefix))
	setDefault(&c.Backend.AccessKeyID, getenv(EnvAWSKeyID))
	if c.Backend.SecretAccessKey == "" {
		c.Backend.SecretAccessKey = logging.Secret(strings.TrimSpace(getenv(EnvAWSSecret)))
	}

	setDefault(&c.MetricsFile, getenv(EnvMetrics))
	setDefault(&c.VaultBinary, getenv(EnvVaultBin))
	setDefault(&c.PassGetter, getenv(EnvPassGetter))
}

// ChildEnv returns the backend settings in effect for this run as
// environment variables, so a qb-pass started by a child process opens the
// same credential store even when the settings came from flags. Static AWS
// keys are only read from the environment and reach children by
// inheritance.
func (c *Config) ChildEnv() []string {
	var env []string
	for _, kv := range [][2]string{
		{EnvBackend, c.Backend.Name},
		{EnvAWSRegion, c.Backend.Region},
		{EnvEndpoint, c.Backend.Endpoint},
		{EnvGCPProject, c.Backend.Project},
		{EnvAzureVault, c.Backend.VaultURL},
		{EnvPrefix, c.Backend.Prefix},
	} {
		if kv[1] != "" {
			env = append(env, kv[0]+"="+kv[1])
		}
	}
	return env
}

// ActiveField returns the selected field name, or "" when none is active.
func (c *Config) ActiveField() string {
	return strings.TrimSpace(c.State.Field)
}

// HasOverride reports whether QB_PASS supplied the password for this run.
func (c *Config) HasOverride() bool {
	return c.PasswordOverride != ""
}

// Persist saves s as the active state for WorkDir and updates c.
func (c *Config) Persist(s State) error {
	if err := SaveState(c.WorkDir, s); err != nil {
		return err
	}
	c.State = State{Field: s.Field, AppName: s.AppName}
	return nil
}

func setDefault(dst *string, value string) {
	if *dst == "" {
		*dst = strings.TrimSpace(value)
	}
}
