package field

import (
	"context"
	"errors"
	"fmt"

	"github.com/bloombuilt/qb/internal/config"
	"github.com/bloombuilt/qb/internal/credentials"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/prompt"
	"github.com/bloombuilt/qb/internal/vault"
)

// Intents offered by Init.
const (
	IntentCreate   = "create"
	IntentActivate = "activate"
)

// VaultFactory returns an Encryptor that resolves the password of field.
type VaultFactory func(field string) vault.Encryptor

// Manager runs the field lifecycle: create, activate, and readiness checks
// before any command that needs the field password.
type Manager struct {
	Config   *config.Config
	Store    credentials.Store
	Prompter prompt.Prompter
	Vault    VaultFactory
}

// CreateOptions carries values supplied up front. Missing values are
// prompted for.
type CreateOptions struct {
	Name     string
	AppName  string
	Password string
}

// Session is a ready field with its resolved password.
type Session struct {
	Field  Field
	Secret *credentials.Secret
}

// NewManager builds a Manager. A nil prompter disables prompting.
func NewManager(cfg *config.Config, store credentials.Store, prompter prompt.Prompter, factory VaultFactory) *Manager {
	if prompter == nil {
		prompter = prompt.Disabled{}
	}
	return &Manager{Config: cfg, Store: store, Prompter: prompter, Vault: factory}
}

func (m *Manager) key(name, appName string) credentials.Key {
	return credentials.Key{Workspace: m.Config.Workspace, Field: name, AppName: appName}
}

func (m *Manager) chain(withPrompt bool) *credentials.Chain {
	var p prompt.Prompter
	if withPrompt {
		p = m.Prompter
	}
	c := credentials.NewChain(m.Config.PasswordOverride, m.Store, p)
	c.Logger = m.Config.Logger
	c.Metrics = m.Config.Metrics
	return c
}

// Create stores the field password, makes the field active and scaffolds
// its directory. An existing directory is left untouched. A scaffold that
// fails part way is removed so a retry starts clean.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (Field, error) {
	log := m.Config.Logger
	log.Info("Setting up a new field. It will become the active field for this project.")

	name, err := m.ask(opts.Name, "What's the name of the field? (e.g. staging)", true)
	if err != nil {
		return Field{}, err
	}
	if err := ValidateName(name); err != nil {
		return Field{}, qberrors.UserError{Message: err.Error(), Err: err}
	}

	appName, err := m.ask(opts.AppName, "What's the name of this app? (optional)", false)
	if err != nil {
		return Field{}, err
	}

	// The callback encrypts with QB_PASS when it is set. A stored password
	// must match it, and QB_PASS itself is never stored.
	password := opts.Password
	override := m.Config.PasswordOverride.Reveal()
	switch {
	case password != "" && override != "" && password != override:
		return Field{}, qberrors.UserError{
			Message:    "The given password differs from QB_PASS",
			Suggestion: "Unset QB_PASS, or pass the same password",
		}
	case password == "" && override == "":
		password, err = m.Prompter.Password("What password should encrypt this field? Keep it in a password manager too.")
		if err != nil {
			return Field{}, missingInput("a field password", err)
		}
	}

	f := New(m.Config.WorkDir, name, appName)
	if password != "" {
		log.Redact(password)
		if err := credentials.Save(ctx, m.Store, m.key(name, appName), password); err != nil {
			return Field{}, qberrors.BackendError(m.Store.Name(), "store", err)
		}
	} else {
		log.Info("Using QB_PASS for field %s. It is not stored; run 'qb field switch %s' without it to store a password.", name, name)
	}
	if err := m.Config.Persist(config.State{Field: name, AppName: appName}); err != nil {
		return Field{}, fmt.Errorf("failed to save active field: %w", err)
	}

	if f.Exists() {
		log.Info("A folder named %s already exists. Skipping scaffolding.", name)
		return f, nil
	}
	if err := scaffold(ctx, f, m.Vault(name)); err != nil {
		if rmErr := discard(f); rmErr != nil {
			log.Warn("Failed to remove the partial field %s: %v", f.Dir, rmErr)
		}
		return Field{}, err
	}
	log.Info("Field %s created and activated", name)
	return f, nil
}

// Activate makes an existing field directory the active field, asking for
// the app name and password when they are not known yet.
func (m *Manager) Activate(ctx context.Context, name string) (Field, error) {
	log := m.Config.Logger

	name, err := m.askField(name)
	if err != nil {
		return Field{}, err
	}
	if err := ValidateName(name); err != nil {
		return Field{}, qberrors.UserError{Message: err.Error(), Err: err}
	}

	f := New(m.Config.WorkDir, name, "")
	if !f.Exists() {
		return Field{}, qberrors.TargetMissing("field directory", name)
	}

	appName := m.Config.State.AppName
	if appName == "" {
		appName, err = m.ask("", "There's no app name set up yet. What's the name of this app? (optional)", false)
		if err != nil {
			return Field{}, err
		}
	}
	f.AppName = appName

	secret, err := m.chain(true).Resolve(ctx, m.key(name, appName))
	if err != nil {
		return Field{}, m.resolveError(name, err)
	}
	secret.Wipe()

	if err := m.Config.Persist(config.State{Field: name, AppName: appName}); err != nil {
		return Field{}, fmt.Errorf("failed to save active field: %w", err)
	}
	log.Info("Field %s is now active", name)
	return f, nil
}

// EnsureReady returns the active field and its password. The field
// directory must exist before any credential is resolved or stored.
func (m *Manager) EnsureReady(ctx context.Context) (Session, error) {
	name := m.Config.ActiveField()
	if name == "" {
		return Session{}, qberrors.NotConfigured()
	}
	if err := ValidateName(name); err != nil {
		return Session{}, qberrors.UserError{
			Message:    err.Error(),
			Suggestion: "Fix the field in .qb or QB_FIELD",
			Err:        qberrors.ErrNotConfigured,
		}
	}

	appName := m.Config.State.AppName
	f := New(m.Config.WorkDir, name, appName)
	if !f.Exists() {
		return Session{}, qberrors.TargetMissing("field directory", name)
	}

	secret, err := m.chain(true).Resolve(ctx, m.key(name, appName))
	if err != nil {
		return Session{}, m.resolveError(name, err)
	}
	if plain, err := secret.Reveal(); err == nil {
		m.Config.Logger.Redact(plain)
	}
	return Session{Field: f, Secret: secret}, nil
}

// Init asks whether to create or activate a field and does it.
func (m *Manager) Init(ctx context.Context) (Field, error) {
	intent, err := m.Prompter.Select("Want to create a new field, or activate an existing one?",
		[]string{IntentCreate, IntentActivate})
	if err != nil {
		return Field{}, missingInput("a choice between create and activate", err)
	}
	if intent == IntentCreate {
		return m.Create(ctx, CreateOptions{})
	}
	return m.Activate(ctx, "")
}

// Probe reports whether the active field's password resolves without
// prompting. It backs "qb status".
func (m *Manager) Probe(ctx context.Context) (credentials.Source, error) {
	name := m.Config.ActiveField()
	if name == "" {
		return "", qberrors.NotConfigured()
	}
	secret, err := m.chain(false).Resolve(ctx, m.key(name, m.Config.State.AppName))
	if err != nil {
		return "", err
	}
	defer secret.Wipe()
	return secret.Source, nil
}

func (m *Manager) askField(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if names, err := List(m.Config.WorkDir); err == nil && len(names) > 0 {
		choice, err := m.Prompter.Select("Which field do you want to activate?", names)
		if err != nil {
			return "", missingInput("a field name", err)
		}
		return choice, nil
	}
	return m.ask("", "What's the name of the field you want to activate?", true)
}

// ask returns value if set, otherwise prompts. Optional questions answer
// "" when prompting is not possible.
func (m *Manager) ask(value, title string, required bool) (string, error) {
	if value != "" {
		return value, nil
	}
	answer, err := m.Prompter.Input(title)
	if err != nil {
		if !required && errors.Is(err, prompt.ErrNonInteractive) {
			return "", nil
		}
		return "", missingInput(title, err)
	}
	if required && answer == "" {
		return "", qberrors.UserError{Message: "A value is required: " + title}
	}
	return answer, nil
}

func (m *Manager) resolveError(name string, err error) error {
	if errors.Is(err, credentials.ErrNotResolved) {
		return qberrors.UserError{
			Message:    fmt.Sprintf("No password is stored for field %s", name),
			Suggestion: fmt.Sprintf("Run 'qb field switch %s' interactively, or set QB_PASS", name),
			Err:        qberrors.ErrNotConfigured,
		}
	}
	return qberrors.BackendError(m.Store.Name(), "get", err)
}

func missingInput(what string, err error) error {
	if errors.Is(err, prompt.ErrNonInteractive) {
		return qberrors.UserError{
			Message:    fmt.Sprintf("Missing %s and running non-interactively", what),
			Suggestion: "Pass the value as a flag or environment variable, or run in a terminal",
			Err:        err,
		}
	}
	return err
}
