package commands

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloombuilt/qb/internal/config"
	"github.com/bloombuilt/qb/internal/credentials"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/metrics"
	"github.com/bloombuilt/qb/internal/vault"
	"github.com/bloombuilt/qb/tests/fakes"
	"github.com/bloombuilt/qb/tests/testutil"
)

type fakeGit struct {
	err error
}

func (g *fakeGit) EnsureDeployable(context.Context) error { return g.err }

type testApp struct {
	*App
	ws        *testutil.Workspace
	workspace string
	env       map[string]string
	store     *fakes.FakeStore
	vault     *fakes.FakeVault
	prompter  *fakes.FakePrompter
	exec      *testutil.MockCommandExecutor
	git       *fakeGit
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ws := testutil.NewWorkspace(t)
	workspace, err := config.WorkspaceID(ws.Dir)
	require.NoError(t, err)

	ta := &testApp{
		ws:        ws,
		workspace: workspace,
		env:       map[string]string{},
		store:     fakes.NewFakeStore(),
		vault:     fakes.NewFakeVault(),
		prompter:  &fakes.FakePrompter{},
		exec:      testutil.NewMockCommandExecutor(),
		git:       &fakeGit{},
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
	}
	cfg := &config.Config{
		WorkDir:    ws.Dir,
		Getenv:     testutil.MapEnv(ta.env),
		PassGetter: "/usr/local/bin/qb-pass",
	}
	ta.App = &App{
		Config:    cfg,
		OpenStore: func(context.Context) (credentials.Store, error) { return ta.store, nil },
		Prompter:  ta.prompter,
		NewVault:  func(string) vault.Encryptor { return ta.vault },
		Exec:      ta.exec,
		Git:       ta.git,
		Stdin:     strings.NewReader(""),
		Stdout:    ta.stdout,
		Stderr:    ta.stderr,
	}
	return ta
}

// withField scaffolds an active staging field whose password is stored.
func (ta *testApp) withField(t *testing.T, env string) {
	t.Helper()

	for _, name := range []string{"infra", "provision", "deploy"} {
		ta.ws.WriteFile("staging/"+name+".yml", "# playbook\n")
	}
	ta.ws.WriteFile("staging/vars/common.yml", "app_name: shop\nenv: staging\n")
	ta.ws.WriteFile("staging/requirements.yml", "# roles\n")
	ta.ws.WriteFile("staging/app_env", string(fakes.Encrypt([]byte(env))))
	require.NoError(t, config.SaveState(ta.ws.Dir, config.State{Field: "staging", AppName: "shop"}))
	ta.store.Secrets[ta.workspace+".staging"] = "pw"
}

func (ta *testApp) execute(args ...string) error {
	cmd := NewRootCommand(ta.App, "test")
	cmd.SetArgs(args)
	cmd.SetOut(ta.stdout)
	cmd.SetErr(ta.stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestFieldNewNonInteractive(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.Stdin = strings.NewReader("hunter22\n")

	err := ta.execute("field", "new", "--name", "staging", "--app", "shop", "--password-stdin", "--non-interactive")
	require.NoError(t, err)

	stored, ok := ta.store.Lookup(ta.workspace + ".staging")
	require.True(t, ok)
	assert.Equal(t, "hunter22", stored)
	assert.Equal(t, "staging", config.LoadState(ta.ws.Dir).Field)
	assert.True(t, ta.ws.Exists("staging/deploy.yml"))
	assert.True(t, strings.HasPrefix(ta.ws.ReadFile("staging/app_env"), fakes.FakeHeader))
	assert.Empty(t, ta.prompter.Asked)
	assert.NotContains(t, ta.stderr.String(), "hunter22")
}

func TestFieldSwitch(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")
	ta.ws.WriteFile("prod/vars/common.yml", "env: prod\n")
	ta.store.Secrets[ta.workspace+".prod"] = "prod-pw"

	require.NoError(t, ta.execute("field", "switch", "prod"))
	assert.Equal(t, "prod", config.LoadState(ta.ws.Dir).Field)

	err := ta.execute("field", "switch", "missing")
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))
	assert.Equal(t, "prod", config.LoadState(ta.ws.Dir).Field)
}

func TestVerbsRequireActiveField(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"env", "show"},
		{"env", "set", "A", "1"},
		{"run", "provision"},
		{"install"},
		{"protect_string", "x"},
	} {
		args := args
		t.Run(strings.Join(args, "_"), func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t)
			err := ta.execute(args...)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, qberrors.ErrNotConfigured))
			assert.Equal(t, 1, qberrors.ExitCode(err))
			assert.Zero(t, ta.exec.CallCount())
			assert.Empty(t, ta.vault.Ops())
		})
	}
}

func TestPreconditionFailuresAreCounted(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.Config.Metrics = metrics.New()

	require.Error(t, ta.execute("env", "show"))
	ta.withField(t, "")
	require.NoError(t, ta.execute("env", "show"))

	expected := `
# HELP qb_operations_total Total number of qb operations by outcome
# TYPE qb_operations_total counter
qb_operations_total{operation="env_show",result="failure"} 1
qb_operations_total{operation="env_show",result="success"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(ta.Config.Metrics.Gatherer(),
		strings.NewReader(expected), "qb_operations_total"))
}

func TestEnvSetAndShow(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "# env\n")

	require.NoError(t, ta.execute("env", "set", "NODE_ENV", "production"))
	require.NoError(t, ta.execute("env", "set", "NODE_ENV", "staging"))

	plain, err := fakes.Decrypt([]byte(ta.ws.ReadFile("staging/app_env")))
	require.NoError(t, err)
	assert.Equal(t, "# env\nexport NODE_ENV=staging\n", string(plain))
	assert.Contains(t, ta.stderr.String(), "Updated NODE_ENV")

	ta.stdout.Reset()
	require.NoError(t, ta.execute("env", "show"))
	assert.Equal(t, "# env\nexport NODE_ENV=staging\n", ta.stdout.String())
}

func TestEnvSetNeedsNameAndValue(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")

	err := ta.execute("env", "set", "ONLY_NAME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and a value")
	assert.Empty(t, ta.vault.Ops())
}

func TestRun(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")

	require.NoError(t, ta.execute("run", "provision", "--", "--check"))
	lines := ta.exec.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ansible-playbook "+ta.ws.Path("staging", "provision.yml")))
	assert.True(t, strings.HasSuffix(lines[0], "--check"))

	ta.git.err = qberrors.UserError{Message: "dirty", Err: qberrors.ErrDirtyTree}
	err := ta.execute("run", "deploy")
	assert.True(t, stderrors.Is(err, qberrors.ErrDirtyTree))
	require.NoError(t, ta.execute("run", "deploy", "--force"))

	err = ta.execute("run", "teardown")
	assert.Contains(t, err.Error(), "Unknown playbook")
}

func TestCINeverPrompts(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")
	delete(ta.store.Secrets, ta.workspace+".staging")
	ta.prompter.Passwords = []string{"typed"}

	err := ta.execute("ci", "deploy")
	assert.True(t, stderrors.Is(err, qberrors.ErrNotConfigured))
	assert.Empty(t, ta.prompter.Asked)
	assert.Zero(t, ta.exec.CallCount())
}

func TestCIWithOverride(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")
	ta.env[config.EnvPass] = "from-env"

	require.NoError(t, ta.execute("ci", "deploy"))
	lines := ta.exec.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "ansible-galaxy install -r requirements.yml", lines[0])
	assert.Contains(t, lines[1], "deploy.yml")
}

func TestFileVerbs(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")
	ta.ws.WriteFile("staging/files/key.pem", "secret key\n")

	require.NoError(t, ta.execute("protect", "staging/files/key.pem"))
	assert.True(t, strings.HasPrefix(ta.ws.ReadFile("staging/files/key.pem"), fakes.FakeHeader))

	err := ta.execute("protect", "staging/files/key.pem")
	assert.Contains(t, err.Error(), "already encrypted")

	ta.stdout.Reset()
	require.NoError(t, ta.execute("show", "staging/files/key.pem"))
	assert.Equal(t, "secret key\n", ta.stdout.String())

	require.NoError(t, ta.execute("expose", "staging/files/key.pem"))
	assert.Equal(t, "secret key\n", ta.ws.ReadFile("staging/files/key.pem"))

	err = ta.execute("show", "staging/files/nope")
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))

	ta.stdout.Reset()
	require.NoError(t, ta.execute("protect_string", "s3cret"))
	assert.Contains(t, ta.stdout.String(), "!vault |")
	assert.NotContains(t, ta.stdout.String(), "s3cret")
}

func TestChildProcessesSeeBackendFlags(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.withField(t, "")
	ta.NewVault = nil
	ta.ws.WriteFile("staging/files/key.pem", "secret key\n")

	require.NoError(t, ta.execute("--backend", "aws-ssm", "protect", "staging/files/key.pem"))
	require.NoError(t, ta.execute("--backend", "aws-ssm", "run", "provision"))

	calls := ta.exec.RecordedCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "ansible-vault", calls[0].Command)
	assert.Equal(t, "ansible-playbook", calls[1].Command)
	for _, call := range calls {
		assert.Contains(t, call.Args, "--vault-password-file")

		vars := map[string]string{}
		for _, kv := range call.Env {
			k, v, _ := strings.Cut(kv, "=")
			vars[k] = v
		}
		child := &config.Config{WorkDir: ta.ws.Dir, Getenv: testutil.MapEnv(vars)}
		require.NoError(t, child.Load())
		assert.Equal(t, "aws-ssm", child.Backend.Name, call.Command)
		assert.Equal(t, "staging", child.ActiveField(), call.Command)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	require.NoError(t, ta.execute("status"))
	assert.Contains(t, ta.stdout.String(), "(none)")

	ta.withField(t, "")
	ta.stdout.Reset()
	require.NoError(t, ta.execute("status"))
	out := ta.stdout.String()
	assert.Contains(t, out, "Field:     staging")
	assert.Contains(t, out, "Password:  found (store)")
	assert.Contains(t, out, ta.workspace)
	assert.NotContains(t, out, "pw\n")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	require.NoError(t, ta.execute("version"))
	assert.Equal(t, "qb test\n", ta.stdout.String())
}
