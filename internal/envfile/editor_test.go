package envfile_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloombuilt/qb/internal/envfile"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/tests/fakes"
	"github.com/bloombuilt/qb/tests/testutil"
)

func setupEnv(t *testing.T, plain string) (*testutil.Workspace, string) {
	t.Helper()
	ws := testutil.NewWorkspace(t)
	path := ws.WriteFile("staging/app_env", string(fakes.Encrypt([]byte(plain))))
	return ws, path
}

func decrypted(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	plain, err := fakes.Decrypt(data)
	require.NoError(t, err, "file should be encrypted at rest")
	return string(plain)
}

func TestSetVariableAppendsOnce(t *testing.T) {
	t.Parallel()

	ws, path := setupEnv(t, "# Add variables below\n")
	v := fakes.NewFakeVault()
	editor := envfile.NewEditor(v, nil)

	change, err := editor.SetVariable(context.Background(), path, "API_KEY", "k1")
	require.NoError(t, err)
	assert.False(t, change.Replaced)

	got := decrypted(t, path)
	assert.Equal(t, "# Add variables below\nexport API_KEY=k1\n", got)
	assert.Equal(t, 1, strings.Count(got, "export API_KEY=k1"))
	testutil.AssertNoFileWithPrefix(t, ws.Path("staging"), ".app_env-")
}

func TestSetVariableUpdatesInPlace(t *testing.T) {
	t.Parallel()

	_, path := setupEnv(t, "export A=1\nexport B=2\n")
	editor := envfile.NewEditor(fakes.NewFakeVault(), nil)
	ctx := context.Background()

	_, err := editor.SetVariable(ctx, path, "B", "v1")
	require.NoError(t, err)
	change, err := editor.SetVariable(ctx, path, "B", "v2")
	require.NoError(t, err)
	assert.True(t, change.Replaced)

	got := decrypted(t, path)
	assert.Equal(t, "export A=1\nexport B=v2\n", got)
	assert.Equal(t, 1, strings.Count(got, "B="))
}

func TestSetVariableWorksOnCopy(t *testing.T) {
	t.Parallel()

	_, path := setupEnv(t, "export A=1\n")
	v := fakes.NewFakeVault()
	editor := envfile.NewEditor(v, nil)

	_, err := editor.SetVariable(context.Background(), path, "B", "2")
	require.NoError(t, err)

	ops := v.Ops()
	require.Len(t, ops, 2)
	assert.True(t, strings.HasPrefix(ops[0], "expose "))
	assert.True(t, strings.HasPrefix(ops[1], "protect "))
	for _, op := range ops {
		assert.NotEqual(t, path, strings.SplitN(op, " ", 2)[1], "the original must never be decrypted in place")
	}
}

func TestSetVariableFailureLeavesOriginal(t *testing.T) {
	t.Parallel()

	for _, op := range []string{"expose", "protect"} {
		op := op
		t.Run(op, func(t *testing.T) {
			t.Parallel()

			ws, path := setupEnv(t, "export A=1\n")
			before, err := os.ReadFile(path)
			require.NoError(t, err)

			v := fakes.NewFakeVault()
			v.Fail[op] = stderrors.New("vault exploded")
			editor := envfile.NewEditor(v, nil)

			_, err = editor.SetVariable(context.Background(), path, "B", "2")
			require.Error(t, err)

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			testutil.AssertNoFileWithPrefix(t, ws.Path("staging"), ".app_env-")
		})
	}
}

func TestSetVariableEncryptsPlaintextFile(t *testing.T) {
	t.Parallel()

	ws := testutil.NewWorkspace(t)
	path := ws.WriteFile("staging/app_env", "export A=1\n")
	var logs bytes.Buffer
	v := fakes.NewFakeVault()
	editor := envfile.NewEditor(v, logging.NewWithWriter(&logs, false, true))

	_, err := editor.SetVariable(context.Background(), path, "B", "2")
	require.NoError(t, err)

	assert.Equal(t, "export A=1\nexport B=2\n", decrypted(t, path))
	assert.Contains(t, logs.String(), "not encrypted")
	require.Len(t, v.Ops(), 1)
	assert.True(t, strings.HasPrefix(v.Ops()[0], "protect "))
}

func TestSetVariableReportsDuplicates(t *testing.T) {
	t.Parallel()

	_, path := setupEnv(t, "export A=1\nexport A=2\n")
	var logs bytes.Buffer
	editor := envfile.NewEditor(fakes.NewFakeVault(), logging.NewWithWriter(&logs, false, true))

	change, err := editor.SetVariable(context.Background(), path, "A", "3")
	require.NoError(t, err)
	require.Len(t, change.Dropped, 1)
	assert.Equal(t, "2", change.Dropped[0].Value)
	assert.Equal(t, "export A=3\n", decrypted(t, path))
	assert.Contains(t, logs.String(), "duplicate")
}

func TestSetVariableKeepsMode(t *testing.T) {
	t.Parallel()

	_, path := setupEnv(t, "")
	require.NoError(t, os.Chmod(path, 0o640))

	_, err := envfile.NewEditor(fakes.NewFakeVault(), nil).SetVariable(context.Background(), path, "A", "1")
	require.NoError(t, err)
	testutil.AssertFileMode(t, path, 0o640)
}

func TestSetVariableErrors(t *testing.T) {
	t.Parallel()

	ws := testutil.NewWorkspace(t)
	editor := envfile.NewEditor(fakes.NewFakeVault(), nil)
	ctx := context.Background()

	_, err := editor.SetVariable(ctx, ws.Path("nope/app_env"), "A", "1")
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))

	_, path := setupEnv(t, "")
	_, err = editor.SetVariable(ctx, path, "not valid", "1")
	assert.Error(t, err)
}

func TestShowAndEdit(t *testing.T) {
	t.Parallel()

	_, path := setupEnv(t, "export A=1\n")
	v := fakes.NewFakeVault()
	v.EditFunc = func(plain []byte) []byte { return append(plain, []byte("export B=2\n")...) }
	editor := envfile.NewEditor(v, nil)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, editor.Show(ctx, path, &out))
	assert.Equal(t, "export A=1\n", out.String())

	require.NoError(t, editor.Edit(ctx, path))
	assert.Equal(t, "export A=1\nexport B=2\n", decrypted(t, path))

	err := editor.Show(ctx, path+".missing", &out)
	assert.True(t, stderrors.Is(err, qberrors.ErrTargetMissing))
}

func TestPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "staging/app_env", envfile.Path("staging"))
}
