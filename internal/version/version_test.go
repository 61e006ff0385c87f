package version

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExact(t *testing.T) {
	s, err := Parse("20.11.0")
	require.NoError(t, err)
	assert.Equal(t, KindExact, s.Kind)
	require.NotNil(t, s.Exact)
	assert.Equal(t, "20.11.0", s.Exact.String())
}

func TestParseLatest(t *testing.T) {
	s, err := Parse("latest")
	require.NoError(t, err)
	assert.Equal(t, KindLatest, s.Kind)
}

func TestParseRange(t *testing.T) {
	s, err := Parse("^20.0.0")
	require.NoError(t, err)
	assert.Equal(t, KindRange, s.Kind)
	require.NotNil(t, s.Constraint)

	v := semver.MustParse("20.5.0")
	assert.True(t, s.Satisfies(v))

	v2 := semver.MustParse("21.0.0")
	assert.False(t, s.Satisfies(v2))
}

func TestParseBareMajorIsRange(t *testing.T) {
	s, err := Parse("6")
	require.NoError(t, err)
	assert.Equal(t, KindRange, s.Kind)
	require.NotNil(t, s.Constraint)

	assert.True(t, s.Satisfies(semver.MustParse("6.19.62")))
	assert.False(t, s.Satisfies(semver.MustParse("7.0.0")))
}

func TestParseBareMajorMinorIsRange(t *testing.T) {
	s, err := Parse("6.19")
	require.NoError(t, err)
	assert.Equal(t, KindRange, s.Kind)
	require.NotNil(t, s.Constraint)

	assert.True(t, s.Satisfies(semver.MustParse("6.19.62")))
	assert.True(t, s.Satisfies(semver.MustParse("6.20.0")))
	assert.False(t, s.Satisfies(semver.MustParse("7.0.0")))
}

func TestParseTag(t *testing.T) {
	s, err := Parse("lts")
	require.NoError(t, err)
	assert.Equal(t, KindTag, s.Kind)
	assert.Equal(t, "lts", s.Tag)
}

func TestParseEmptyErrors(t *testing.T) {
	_, err := Parse("  ")
	assert.Error(t, err)
}

func TestHighestMatchingExcludesPrerelease(t *testing.T) {
	s, err := Parse(">=18.0.0")
	require.NoError(t, err)

	candidates := []*semver.Version{
		semver.MustParse("18.0.0"),
		semver.MustParse("19.0.0-rc.1"),
		semver.MustParse("20.1.0"),
	}
	best := HighestMatching(s, candidates)
	require.NotNil(t, best)
	assert.Equal(t, "20.1.0", best.String())
}

func TestHighest(t *testing.T) {
	candidates := []*semver.Version{
		semver.MustParse("1.0.0"),
		semver.MustParse("2.5.0-beta"),
		semver.MustParse("2.0.0"),
	}
	best := Highest(candidates)
	require.NotNil(t, best)
	assert.Equal(t, "2.0.0", best.String())
}
