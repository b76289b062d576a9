package field_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloombuilt/qb/internal/config"
	"github.com/bloombuilt/qb/internal/credentials"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/field"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/vault"
	"github.com/bloombuilt/qb/tests/fakes"
	"github.com/bloombuilt/qb/tests/testutil"
)

const testWorkspace = "4a5b6c7d"

type harness struct {
	ws       *testutil.Workspace
	cfg      *config.Config
	store    *fakes.FakeStore
	vault    *fakes.FakeVault
	prompter *fakes.FakePrompter
	logs     *bytes.Buffer
	fields   []string
	manager  *field.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ws:       testutil.NewWorkspace(t),
		store:    fakes.NewFakeStore(),
		vault:    fakes.NewFakeVault(),
		prompter: &fakes.FakePrompter{},
		logs:     &bytes.Buffer{},
	}
	h.cfg = &config.Config{
		WorkDir:   h.ws.Dir,
		Workspace: testWorkspace,
		Logger:    logging.NewWithWriter(h.logs, false, true),
	}
	h.manager = field.NewManager(h.cfg, h.store, h.prompter, func(name string) vault.Encryptor {
		h.fields = append(h.fields, name)
		return h.vault
	})
	return h
}

func TestCreateScaffoldsField(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prompter.Inputs = []string{"staging", "shop"}
	h.prompter.Passwords = []string{"s3cret"}

	f, err := h.manager.Create(context.Background(), field.CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "staging", f.Name)
	assert.Equal(t, "shop", f.AppName)

	stored, ok := h.store.Lookup(testWorkspace + ".staging")
	require.True(t, ok)
	assert.Equal(t, "s3cret", stored)

	state := config.LoadState(h.ws.Dir)
	assert.Equal(t, "staging", state.Field)
	assert.Equal(t, "shop", state.AppName)

	for _, rel := range []string{
		"staging/vars/common.yml",
		"staging/files",
		"staging/infra.yml",
		"staging/provision.yml",
		"staging/deploy.yml",
		"staging/requirements.yml",
	} {
		assert.True(t, h.ws.Exists(rel), rel)
	}
	assert.Contains(t, h.ws.ReadFile("staging/vars/common.yml"), "app_name: shop")

	env := h.ws.ReadFile("staging/app_env")
	require.True(t, strings.HasPrefix(env, fakes.FakeHeader), "app_env must be encrypted")
	plain, err := fakes.Decrypt([]byte(env))
	require.NoError(t, err)
	assert.Contains(t, string(plain), "NODE_ENV=staging")

	assert.Equal(t, []string{"staging"}, h.fields)
	assert.Equal(t, []string{"protect " + h.ws.Path("staging", "app_env")}, h.vault.Ops())
	assert.NotContains(t, h.logs.String(), "s3cret")
}

func TestCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	opts := field.CreateOptions{Name: "staging", AppName: "shop", Password: "pw"}
	ctx := context.Background()

	_, err := h.manager.Create(ctx, opts)
	require.NoError(t, err)
	before := h.ws.ReadFile("staging/app_env")

	_, err = h.manager.Create(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, before, h.ws.ReadFile("staging/app_env"))
	assert.Len(t, h.vault.Ops(), 1, "existing field must not be scaffolded again")
	assert.Contains(t, h.logs.String(), "already exists")
	assert.Equal(t, "staging", config.LoadState(h.ws.Dir).Field)
}

func TestCreateWithOverrideDoesNotStore(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cfg.PasswordOverride = "from-env"

	_, err := h.manager.Create(context.Background(), field.CreateOptions{Name: "prod"})
	require.NoError(t, err)

	assert.Empty(t, h.store.Puts, "the override is never written back to the store")
	assert.True(t, h.ws.Exists("prod/app_env"))
	assert.Equal(t, "prod", config.LoadState(h.ws.Dir).Field)
	assert.Contains(t, h.logs.String(), "not stored")
	assert.NotContains(t, h.logs.String(), "from-env")

	_, err = h.manager.Create(context.Background(), field.CreateOptions{Name: "qa", Password: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QB_PASS")
	assert.Empty(t, h.store.Puts)
	assert.False(t, h.ws.Exists("qa"))
}

func TestCreateNonInteractiveWithoutPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.manager.Create(context.Background(), field.CreateOptions{Name: "prod"})
	require.Error(t, err)

	var userErr qberrors.UserError
	assert.True(t, stderrors.As(err, &userErr))
	assert.Empty(t, h.store.Puts)
	assert.False(t, h.ws.Exists("prod"))
	assert.False(t, h.ws.Exists(config.StateFile))
}

func TestCreateEncryptionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.vault.Fail["protect"] = stderrors.New("vault exploded")

	_, err := h.manager.Create(context.Background(), field.CreateOptions{Name: "staging", Password: "pw"})
	require.Error(t, err)
	assert.False(t, h.ws.Exists("staging/requirements.yml"))
	assert.False(t, h.ws.Exists("staging"), "a failed scaffold leaves no plaintext app_env behind")

	delete(h.vault.Fail, "protect")
	_, err = h.manager.Create(context.Background(), field.CreateOptions{Name: "staging", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, h.ws.Exists("staging/requirements.yml"))
	assert.True(t, strings.HasPrefix(h.ws.ReadFile("staging/app_env"), fakes.FakeHeader))
	assert.NotContains(t, h.logs.String(), "Skipping scaffolding")
}

func TestCreateRejectsBadName(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.manager.Create(context.Background(), field.CreateOptions{Name: "../escape", Password: "pw"})
	require.Error(t, err)
	assert.Empty(t, h.store.Puts)
}

func TestActivateMissingDirectory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, config.SaveState(h.ws.Dir, config.State{Field: "staging"}))
	h.cfg.State = config.LoadState(h.ws.Dir)
	before := h.ws.ReadFile(config.StateFile)

	_, err := h.manager.Activate(context.Background(), "prod")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))

	assert.Equal(t, before, h.ws.ReadFile(config.StateFile))
	assert.Empty(t, h.store.Puts)
	assert.Empty(t, h.store.Gets)
}

func TestActivateStoredPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ws.WriteFile("prod/vars/common.yml", "env: prod\n")
	h.store.Secrets[testWorkspace+".prod"] = "pw"
	h.prompter.Inputs = []string{"shop"}

	f, err := h.manager.Activate(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "shop", f.AppName)

	state := config.LoadState(h.ws.Dir)
	assert.Equal(t, "prod", state.Field)
	assert.Equal(t, "shop", state.AppName)
	assert.Empty(t, h.store.Puts)
}

func TestActivatePromptsAndStores(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ws.WriteFile("prod/vars/common.yml", "env: prod\n")
	h.cfg.State = config.State{AppName: "shop"}
	h.prompter.Passwords = []string{"typed"}

	_, err := h.manager.Activate(context.Background(), "prod")
	require.NoError(t, err)

	stored, ok := h.store.Lookup(testWorkspace + ".prod")
	require.True(t, ok)
	assert.Equal(t, "typed", stored)
	assert.Empty(t, h.prompter.Inputs)
}

func TestActivateSelectsFromList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ws.WriteFile("prod/vars/common.yml", "env: prod\n")
	h.ws.WriteFile("staging/vars/common.yml", "env: staging\n")
	h.cfg.State = config.State{AppName: "shop"}
	h.store.Secrets[testWorkspace+".staging"] = "pw"
	h.prompter.Selects = []string{"staging"}

	f, err := h.manager.Activate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "staging", f.Name)
}

func TestActivateWithoutPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ws.WriteFile("prod/vars/common.yml", "env: prod\n")

	_, err := h.manager.Activate(context.Background(), "prod")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, qberrors.ErrNotConfigured))
	assert.False(t, h.ws.Exists(config.StateFile))
}

func TestEnsureReady(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, err := h.manager.EnsureReady(context.Background())
		assert.True(t, stderrors.Is(err, qberrors.ErrNotConfigured))
		assert.Empty(t, h.store.Gets)
	})

	t.Run("stored", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.ws.Mkdir("staging")
		h.cfg.State = config.State{Field: "staging", AppName: "shop"}
		h.store.Secrets[testWorkspace+".staging"] = "pw"

		session, err := h.manager.EnsureReady(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "staging", session.Field.Name)
		assert.Equal(t, credentials.SourceStore, session.Secret.Source)
		v, err := session.Secret.Reveal()
		require.NoError(t, err)
		assert.Equal(t, "pw", v)
	})

	t.Run("override", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.ws.Mkdir("staging")
		h.cfg.State = config.State{Field: "staging"}
		h.cfg.PasswordOverride = "env-pw"

		session, err := h.manager.EnsureReady(context.Background())
		require.NoError(t, err)
		assert.Equal(t, credentials.SourceOverride, session.Secret.Source)
		assert.Empty(t, h.store.Gets)
	})

	t.Run("no_password", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.ws.Mkdir("staging")
		h.cfg.State = config.State{Field: "staging"}

		_, err := h.manager.EnsureReady(context.Background())
		assert.True(t, stderrors.Is(err, qberrors.ErrNotConfigured))
		assert.Contains(t, err.Error(), "QB_PASS")
	})

	t.Run("backend_failure", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.ws.Mkdir("staging")
		h.cfg.State = config.State{Field: "staging"}
		h.store.GetErr = stderrors.New("keychain locked")

		_, err := h.manager.EnsureReady(context.Background())
		require.Error(t, err)
		assert.False(t, stderrors.Is(err, qberrors.ErrNotConfigured))
		assert.Contains(t, err.Error(), "keychain locked")
	})
}

func TestEnsureReadyMissingDirectory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cfg.State = config.State{Field: "stagign"}
	h.prompter.Passwords = []string{"typo-pw"}

	_, err := h.manager.EnsureReady(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))
	assert.Empty(t, h.prompter.Asked)
	assert.Empty(t, h.store.Gets)
	assert.Empty(t, h.store.Puts)
}

func TestInit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prompter.Selects = []string{field.IntentCreate}
	h.prompter.Inputs = []string{"staging", ""}
	h.prompter.Passwords = []string{"pw"}

	f, err := h.manager.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "staging", f.Name)
	assert.True(t, h.ws.Exists("staging/app_env"))
}

func TestProbe(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cfg.State = config.State{Field: "staging"}
	h.store.Secrets[testWorkspace+".staging"] = "pw"

	source, err := h.manager.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, credentials.SourceStore, source)

	h.store.Secrets = map[string]string{}
	_, err = h.manager.Probe(context.Background())
	assert.True(t, stderrors.Is(err, credentials.ErrNotResolved))
}
