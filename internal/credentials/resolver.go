package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/metrics"
	"github.com/bloombuilt/qb/internal/prompt"
	"github.com/bloombuilt/qb/internal/secure"
)

// ErrNotResolved means a resolver had no answer; the chain moves on.
var ErrNotResolved = errors.New("credential not resolved")

// Source names where a resolved password came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceStore    Source = "store"
	SourceLegacy   Source = "legacy"
	SourcePrompt   Source = "prompt"
)

// Secret is a resolved field password, sealed in memory.
type Secret struct {
	Source Source
	sealed *secure.Sealed
}

// NewSecret seals value.
func NewSecret(value string, source Source) *Secret {
	return &Secret{Source: source, sealed: secure.SealString(value)}
}

// Reveal returns the plaintext password.
func (s *Secret) Reveal() (string, error) {
	if s == nil || s.sealed == nil {
		return "", secure.ErrWiped
	}
	return s.sealed.Reveal()
}

// Wipe destroys the sealed copy.
func (s *Secret) Wipe() {
	if s != nil && s.sealed != nil {
		s.sealed.Wipe()
	}
}

func (s *Secret) String() string {
	return "[REDACTED]"
}

// Resolver produces the password for a key, or ErrNotResolved.
type Resolver interface {
	Resolve(ctx context.Context, key Key) (*Secret, error)
}

// OverrideResolver answers with a fixed password, normally QB_PASS.
type OverrideResolver struct {
	Value logging.Secret
}

func (r OverrideResolver) Resolve(_ context.Context, _ Key) (*Secret, error) {
	if r.Value == "" {
		return nil, ErrNotResolved
	}
	return NewSecret(r.Value.Reveal(), SourceOverride), nil
}

// StoreResolver reads the current account, then the legacy one.
type StoreResolver struct {
	Store Store
}

func (r StoreResolver) Resolve(ctx context.Context, key Key) (*Secret, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	value, err := r.Store.Get(ctx, key.Account())
	switch {
	case err == nil && value != "":
		return NewSecret(value, SourceStore), nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	legacy := key.LegacyAccount()
	if legacy == "" {
		return nil, ErrNotResolved
	}
	value, err = r.Store.Get(ctx, legacy)
	switch {
	case err == nil && value != "":
		return NewSecret(value, SourceLegacy), nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return nil, ErrNotResolved
}

// PromptResolver asks the operator and stores the answer for next time.
type PromptResolver struct {
	Store    Store
	Prompter prompt.Prompter
}

func (r PromptResolver) Resolve(ctx context.Context, key Key) (*Secret, error) {
	if r.Prompter == nil {
		return nil, ErrNotResolved
	}
	value, err := r.Prompter.Password(fmt.Sprintf("Vault password for field %s", key.Field))
	if err != nil {
		if errors.Is(err, prompt.ErrNonInteractive) {
			return nil, ErrNotResolved
		}
		return nil, err
	}
	if value == "" {
		return nil, ErrNotResolved
	}
	if err := Save(ctx, r.Store, key, value); err != nil {
		return nil, err
	}
	return NewSecret(value, SourcePrompt), nil
}

// Chain tries resolvers in order and returns the first answer.
type Chain struct {
	Resolvers []Resolver
	Logger    *logging.Logger
	Metrics   *metrics.Recorder
}

// NewChain builds the standard order: override, store, then prompt. A nil
// prompter leaves the prompt step out.
func NewChain(override logging.Secret, store Store, prompter prompt.Prompter) *Chain {
	c := &Chain{Resolvers: []Resolver{
		OverrideResolver{Value: override},
		StoreResolver{Store: store},
	}}
	if prompter != nil {
		c.Resolvers = append(c.Resolvers, PromptResolver{Store: store, Prompter: prompter})
	}
	return c
}

// Resolve returns the first non-empty answer. ErrNotResolved means every
// resolver declined.
func (c *Chain) Resolve(ctx context.Context, key Key) (*Secret, error) {
	for _, r := range c.Resolvers {
		secret, err := r.Resolve(ctx, key)
		if errors.Is(err, ErrNotResolved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Debug("Password for field %s resolved from %s", key.Field, secret.Source)
		}
		c.Metrics.Resolution(string(secret.Source))
		return secret, nil
	}
	c.Metrics.Resolution("absent")
	return nil, ErrNotResolved
}
