package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/railyard/railyard/internal/layout"
	"github.com/railyard/railyard/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestSession(t *testing.T, startDir string) *Session {
	t.Helper()
	l := layout.NewWithRoot(t.TempDir())
	return New(l, startDir)
}

func TestCurrentPlatformNoProjectNoDefault(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	p, err := s.CurrentPlatform()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCurrentPlatformUserDefaultOnly(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	require.NoError(t, s.SetUserDefaultPlatform(platform.Spec{Node: "18.20.0"}))

	p, err := s.CurrentPlatform()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ProvenanceDefault, p.Provenance)
	assert.Equal(t, "18.20.0", p.Spec.Node)
}

func TestCurrentPlatformProjectPinWithYarnWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"p","railyard":{"node":"6.19.62","yarn":"1.4.0"}}`)

	s := newTestSession(t, root)
	require.NoError(t, s.SetUserDefaultPlatform(platform.Spec{Node: "18.20.0", Yarn: "1.22.19"}))

	p, err := s.CurrentPlatform()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ProvenanceProject, p.Provenance)
	assert.Equal(t, "6.19.62", p.Spec.Node)
	assert.Equal(t, "1.4.0", p.Spec.Yarn)
}

func TestCurrentPlatformProjectPinMergesUserYarn(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"p","railyard":{"node":"6.19.62"}}`)

	s := newTestSession(t, root)
	require.NoError(t, s.SetUserDefaultPlatform(platform.Spec{Node: "18.20.0", Yarn: "1.22.19"}))

	p, err := s.CurrentPlatform()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ProvenanceMerged, p.Provenance)
	assert.Equal(t, "6.19.62", p.Spec.Node)
	assert.Equal(t, "1.22.19", p.Spec.Yarn)
}

func TestCurrentPlatformProjectPinWithoutUserDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"p","railyard":{"node":"6.19.62"}}`)

	s := newTestSession(t, root)

	p, err := s.CurrentPlatform()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ProvenanceProject, p.Provenance)
	assert.Equal(t, "6.19.62", p.Spec.Node)
	assert.Empty(t, p.Spec.Yarn)
}

func TestInstalledNodeNpmSkipsStaging(t *testing.T) {
	root := t.TempDir()
	l := layout.NewWithRoot(root)
	s := New(l, root)

	nodeDir := filepath.Join(root, "tools", "image", "node", "20.11.0")
	require.NoError(t, os.MkdirAll(filepath.Join(nodeDir, "_staging"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(nodeDir, "10.2.4"), 0o755))

	npm, ok := s.installedNodeNpm("20.11.0")
	assert.True(t, ok)
	assert.Equal(t, "10.2.4", npm)

	got, err := s.BundledNpmVersion("20.11.0")
	require.NoError(t, err)
	assert.Equal(t, "10.2.4", got)
}

func TestWritePackageRecordsWritesBinConfigWithLoader(t *testing.T) {
	root := t.TempDir()
	l := layout.NewWithRoot(root)
	s := New(l, root)

	imageDir := filepath.Join(root, "tools", "image", "packages", "typescript", "5.4.0")
	writeFile(t, filepath.Join(imageDir, "package.json"), `{"name":"typescript","bin":{"tsc":"bin/tsc"}}`)
	writeFile(t, filepath.Join(imageDir, "bin", "tsc"), "#!/usr/bin/env node\n")

	require.NoError(t, s.writePackageRecords("typescript", "5.4.0", imageDir, platform.Spec{Node: "20.11.0"}))

	cfg, err := s.Inventory().ReadPackageConfig("typescript")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"tsc"}, cfg.Bins)
	assert.Equal(t, "20.11.0", cfg.Platform.Node)

	bin, err := s.Inventory().ReadBinConfig("tsc")
	require.NoError(t, err)
	require.NotNil(t, bin)
	assert.Equal(t, "typescript", bin.Package)
	assert.Equal(t, "bin/tsc", bin.Path)
	require.NotNil(t, bin.Loader)
	assert.Equal(t, "node", bin.Loader.Command)
}
