package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := New(CategoryNetwork, "download failed")
	assert.Equal(t, "download failed", e.Error())

	wrapped := Wrap(CategoryNetwork, "download failed", errors.New("connection reset"))
	assert.Equal(t, "download failed: connection reset", wrapped.Error())
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		category Category
		want     int
	}{
		{CategoryArguments, 3},
		{CategoryVersion, 4},
		{CategoryNetwork, 5},
		{CategoryEnvironment, 6},
		{CategoryFilesystem, 7},
		{CategoryConfiguration, 8},
		{CategoryInternal, 1},
	}
	for _, c := range cases {
		e := New(c.category, "x")
		assert.Equal(t, c.want, e.ExitCode())
	}
}

func TestExitCodeOverride(t *testing.T) {
	e := BinaryNotFound("xyz")
	assert.Equal(t, 127, e.ExitCode())
}

func TestWithHintAndDetail(t *testing.T) {
	e := New(CategoryConfiguration, "bad config").
		WithHint("check your hooks file").
		WithDetail("path", "/tmp/hooks.json")
	assert.Equal(t, "check your hooks file", e.Hint)
	assert.Equal(t, "/tmp/hooks.json", e.Details["path"])
}

func TestAsUnwrapsChain(t *testing.T) {
	base := New(CategoryNetwork, "boom")
	outer := errors.Join(base)

	var got *Error
	require.True(t, As(outer, &got) || As(base, &got))
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 0, ExitCodeOf(nil))
	assert.Equal(t, 127, ExitCodeOf(BinaryNotFound("foo")))
	assert.Equal(t, 1, ExitCodeOf(errors.New("plain error")))
}

func TestNoPinnedNodeVersionHasHint(t *testing.T) {
	e := NoPinnedNodeVersion()
	assert.Equal(t, CategoryConfiguration, e.Category)
	assert.NotEmpty(t, e.Hint)
}
