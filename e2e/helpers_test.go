//go:build e2e

package e2e

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	. "github.com/onsi/gomega"

	"github.com/railyard/railyard/internal/session"
)

// env is one configured railyard home + project pair a test runs commands
// against.
type env struct {
	home    string
	project string
}

// newEnv creates a fresh RAILYARD_HOME and an empty project directory
// containing the given manifest body.
func newEnv(manifest string) env {
	home, err := os.MkdirTemp("", "railyard-home-")
	Expect(err).NotTo(HaveOccurred())
	project, err := os.MkdirTemp("", "railyard-project-")
	Expect(err).NotTo(HaveOccurred())

	if manifest != "" {
		Expect(os.WriteFile(filepath.Join(project, "package.json"), []byte(manifest), 0o644)).To(Succeed())
	}

	return env{home: home, project: project}
}

func (e env) cleanup() {
	os.RemoveAll(e.home)
	os.RemoveAll(e.project)
}

func (e env) manifestBytes() []byte {
	b, err := os.ReadFile(filepath.Join(e.project, "package.json"))
	Expect(err).NotTo(HaveOccurred())
	return b
}

// writeUserHooks writes the user-global hooks.json at home/hooks.json.
func (e env) writeUserHooks(content string) {
	Expect(os.WriteFile(filepath.Join(e.home, "hooks.json"), []byte(content), 0o644)).To(Succeed())
}

// writeProjectHooks writes the project's .railyard/hooks.json.
func (e env) writeProjectHooks(content string) {
	dir := filepath.Join(e.project, ".railyard")
	Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "hooks.json"), []byte(content), 0o644)).To(Succeed())
}

// run execs the built railyard binary with args, cwd=project, the given
// RAILYARD_HOME, returning combined stdout+stderr and the exit code.
func (e env) run(args ...string) (string, int) {
	cmd := exec.Command(filepath.Join(binDir, "railyard"), args...)
	cmd.Dir = e.project
	cmd.Env = append(os.Environ(), "RAILYARD_HOME="+e.home)
	out, err := cmd.CombinedOutput()
	return string(out), exitCodeOf(err)
}

// runShim execs the railyard-shim binary renamed to invokedAs (so dispatch
// sees that as its argv[0]), with the given extra args.
func (e env) runShim(invokedAs string, args ...string) (string, int) {
	shimCopy := filepath.Join(e.home, invokedAs)
	if runtime.GOOS != "windows" {
		Expect(os.Link(filepath.Join(binDir, "railyard-shim"), shimCopy)).To(Succeed())
	}
	cmd := exec.Command(shimCopy, args...)
	cmd.Dir = e.project
	cmd.Env = append(os.Environ(), "RAILYARD_HOME="+e.home)
	out, err := cmd.CombinedOutput()
	return string(out), exitCodeOf(err)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// buildTarGz packs files (relative path -> content) under a single top-level
// directory topDir, mirroring the real distribution shape the engine's
// FindUnpackRoot expects. Shebang scripts get the executable bit.
func buildTarGz(topDir string, files map[string]string) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		mode := int64(0o644)
		if len(content) >= 2 && content[:2] == "#!" {
			mode = 0o755
		}
		hdr := &tar.Header{Name: topDir + "/" + name, Mode: mode, Size: int64(len(content))}
		Expect(tw.WriteHeader(hdr)).To(Succeed())
		_, err := tw.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(tw.Close()).To(Succeed())
	Expect(gw.Close()).To(Succeed())
	return buf.Bytes()
}

// fakeNodeTarball builds a minimal but complete node distribution archive:
// a bin/node stand-in script, a bin/npm stand-in, and npm's own
// package.json recording npmVersion, which is what readBundledNpmVersion
// reads after unpack.
func fakeNodeTarball(nodeVersion, npmVersion string) []byte {
	topDir := "node-v" + nodeVersion + "-" + session.NodeDistroID()
	npmPkg, _ := json.Marshal(map[string]string{"name": "npm", "version": npmVersion})
	return buildTarGz(topDir, map[string]string{
		"bin/node": "#!/bin/sh\necho fake-node \"$@\"\n",
		"bin/npm":  "#!/bin/sh\necho fake-npm \"$@\"\n",
		"lib/node_modules/npm/package.json": string(npmPkg),
	})
}

// fakeYarnTarball builds a minimal yarn distribution archive.
func fakeYarnTarball(yarnVersion string) []byte {
	topDir := "yarn-v" + yarnVersion
	return buildTarGz(topDir, map[string]string{
		"bin/yarn": "#!/bin/sh\necho fake-yarn \"$@\"\n",
	})
}
