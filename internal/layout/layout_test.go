package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRoot(t *testing.T) {
	l := NewWithRoot("/opt/railyard")
	assert.Equal(t, "/opt/railyard", l.Root())
	assert.Equal(t, "/opt/railyard/bin", l.ShimDir())
	assert.Equal(t, "/opt/railyard/cache", l.CacheDir())
	assert.Equal(t, "/opt/railyard/tmp", l.TmpDir())
}

func TestToolAndPackageImageDirs(t *testing.T) {
	l := NewWithRoot("/opt/railyard")
	assert.Equal(t, filepath.Join("/opt/railyard", "tools", "image", "yarn", "1.22.19"), l.ToolImageDir("yarn", "1.22.19"))
	assert.Equal(t, filepath.Join("/opt/railyard", "tools", "image", "node", "20.11.0", "10.2.4"), l.NodeImageDir("20.11.0", "10.2.4"))
	assert.Equal(t, filepath.Join("/opt/railyard", "tools", "image", "packages", "typescript", "5.4.0"), l.PackageImageDir("typescript", "5.4.0"))
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(envHome, "/tmp/railyard-test-home")
	l, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/railyard-test-home", l.Root())
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := Expand("~/foo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "foo"), got)

	got, err = Expand("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = Expand("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestBinConfigFile(t *testing.T) {
	l := NewWithRoot("/opt/railyard")
	assert.Equal(t, filepath.Join("/opt/railyard", "tools", "user", "bins", "tsc.json"), l.BinConfigFile("tsc"))
}
