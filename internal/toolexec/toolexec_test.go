package toolexec

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccessReturnsZero(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test binary")
	}
	code, err := Run(context.Background(), Spec{Path: "/bin/true"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test binary")
	}
	code, err := Run(context.Background(), Spec{Path: "/bin/false"})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestRunMissingBinaryFails(t *testing.T) {
	_, err := Run(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}

func TestReplacePathOverridesExisting(t *testing.T) {
	env := []string{"FOO=bar", "PATH=/usr/bin"}
	out := replacePath(env, "/custom/bin")
	assert.Contains(t, out, "PATH=/custom/bin")
	assert.NotContains(t, out, "PATH=/usr/bin")
	assert.Contains(t, out, "FOO=bar")
}

func TestReplacePathAppendsWhenAbsent(t *testing.T) {
	env := []string{"FOO=bar"}
	out := replacePath(env, "/custom/bin")
	assert.Contains(t, out, "PATH=/custom/bin")
}

func TestReplacePathEmptyIsNoop(t *testing.T) {
	env := []string{"PATH=/usr/bin"}
	out := replacePath(env, "")
	assert.Equal(t, env, out)
}
