//go:build e2e

package e2e

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("railyard E2E", Ordered, func() {
	Context("pin-node-semver", pinNodeSemverTests)
	Context("pin-preserves-trailing-newline", pinPreservesNewlineTests)
	Context("pin-yarn-without-node", pinYarnWithoutNodeTests)
	Context("hook-overrides-download", hookOverridesDownloadTests)
	Context("project-hook-wins-over-default", projectHookWinsTests)
	Context("shim-dispatch-project-local", shimDispatchProjectLocalTests)
	Context("checksum-mismatch-retries", checksumMismatchRetriesTests)
	Context("npx-npm-too-old", npxNpmTooOldTests)
})

func pinNodeSemverTests() {
	It("pins the highest version under 6.x from the index", func() {
		idx := nodeIndexServer("10.99.1040", "9.27.6", "8.9.10", "6.19.62")
		defer idx.Close()

		e := newEnv(`{"name":"p"}`)
		defer e.cleanup()
		e.writeUserHooks(fmt.Sprintf(`{"node":{"index":{"prefix":%q}}}`, idx.URL+"/"))

		out, code := e.run("pin", "node@6")
		Expect(code).To(Equal(0), out)

		manifest := string(e.manifestBytes())
		Expect(manifest).To(ContainSubstring(`"node": "6.19.62"`))
	})
}

func pinPreservesNewlineTests() {
	It("keeps the manifest's trailing newline after a pin", func() {
		e := newEnv("{\"name\":\"p\"}\n")
		defer e.cleanup()

		out, code := e.run("pin", "node@20.11.0")
		Expect(code).To(Equal(0), out)

		body := e.manifestBytes()
		Expect(body[len(body)-1]).To(Equal(byte('\n')))
	})
}

func pinYarnWithoutNodeTests() {
	It("fails with exit 8 and leaves the manifest untouched", func() {
		e := newEnv(`{"name":"p"}`)
		defer e.cleanup()

		before := e.manifestBytes()
		out, code := e.run("pin", "yarn@1.4.0")
		Expect(code).To(Equal(8), out)
		Expect(e.manifestBytes()).To(Equal(before))
	})
}

func hookOverridesDownloadTests() {
	It("issues the hook template's URL for the pinned version", func() {
		srv := tarballServer(fakeNodeTarball("1.2.3", "9.9.9"))
		defer srv.Close()

		e := newEnv("")
		defer e.cleanup()
		e.writeUserHooks(fmt.Sprintf(`{"node":{"distro":{"template":%q}}}`, srv.URL+"/hook/default/node/{{version}}"))

		out, code := e.run("install", "node@1.2.3")
		Expect(code).To(Equal(0), out)
		Expect(srv.hitPaths()).To(ContainElement("/hook/default/node/1.2.3"))
	})
}

func projectHookWinsTests() {
	It("prefers the project's yarn template over the user's, and the user's node template when the project has none", func() {
		srv := newFixtureServer(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "yarn") {
				w.Write(fakeYarnTarball("3.2.1"))
			} else {
				w.Write(fakeNodeTarball("10.12.1", "6.9.0"))
			}
		})
		defer srv.Close()

		e := newEnv(`{"name":"p"}`)
		defer e.cleanup()
		e.writeUserHooks(fmt.Sprintf(
			`{"node":{"distro":{"template":%q}},"yarn":{"distro":{"template":%q}}}`,
			srv.URL+"/user/node/{{version}}", srv.URL+"/user/yarn/{{version}}"))
		e.writeProjectHooks(fmt.Sprintf(`{"yarn":{"distro":{"template":%q}}}`, srv.URL+"/project/yarn/{{version}}"))

		out, code := e.run("install", "node@10.12.1")
		Expect(code).To(Equal(0), out)
		Expect(srv.hitPaths()).To(ContainElement("/user/node/10.12.1"))

		out, code = e.run("install", "yarn@3.2.1")
		Expect(code).To(Equal(0), out)
		Expect(srv.hitPaths()).To(ContainElement("/project/yarn/3.2.1"))
		Expect(srv.hitPaths()).NotTo(ContainElement("/user/yarn/3.2.1"))
	})
}

func shimDispatchProjectLocalTests() {
	It("execs the project's local dependency binary with the pinned node bin dir on PATH", func() {
		e := newEnv(`{"name":"p","dependencies":{"eslint":"^8.0.0"},"railyard":{"node":"6.19.62"}}`)
		defer e.cleanup()

		binPath := filepath.Join(e.project, "node_modules", "eslint", "bin", "eslint")
		Expect(os.MkdirAll(filepath.Dir(binPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(binPath, []byte("#!/bin/sh\necho ran-eslint \"$@\"\necho PATH=$PATH\n"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(e.project, "node_modules", "eslint", "package.json"),
			[]byte(`{"name":"eslint","bin":{"eslint":"bin/eslint"}}`), 0o644)).To(Succeed())

		nodeBinDir := filepath.Join(e.home, "tools", "image", "node", "6.19.62", "9.9.9", "bin")
		Expect(os.MkdirAll(nodeBinDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(nodeBinDir, "node"), []byte("#!/bin/sh\n"), 0o755)).To(Succeed())

		out, code := e.runShim("eslint", "--fix")
		Expect(code).To(Equal(0), out)
		Expect(out).To(ContainSubstring("ran-eslint --fix"))
		Expect(out).To(ContainSubstring(nodeBinDir))
	})
}

func checksumMismatchRetriesTests() {
	It("treats a corrupted cached tarball as absent and redownloads", func() {
		srv := tarballServer(fakeYarnTarball("1.7.71"))
		defer srv.Close()

		e := newEnv("")
		defer e.cleanup()
		e.writeUserHooks(fmt.Sprintf(`{"yarn":{"distro":{"template":%q}}}`, srv.URL+"/yarn/{{version}}"))

		cacheDir := filepath.Join(e.home, "tools", "inventory", "yarn")
		Expect(os.MkdirAll(cacheDir, 0o755)).To(Succeed())
		tarballPath := filepath.Join(cacheDir, "yarn-1.7.71-tar.gz")
		Expect(os.WriteFile(tarballPath, []byte("not a real archive"), 0o644)).To(Succeed())
		Expect(os.WriteFile(tarballPath+".shasum", []byte(strings.Repeat("a", 64)), 0o644)).To(Succeed())

		out, code := e.run("install", "yarn@1.7.71")
		Expect(code).To(Equal(0), out)
		Expect(srv.hitPaths()).To(ContainElement("/yarn/1.7.71"))
	})
}

func npxNpmTooOldTests() {
	It("fails with NpxNotAvailable and exit 127 when the effective npm predates npx", func() {
		e := newEnv(`{"name":"p","railyard":{"node":"6.19.62"}}`)
		defer e.cleanup()

		nodeBinDir := filepath.Join(e.home, "tools", "image", "node", "6.19.62", "5.1.0", "bin")
		Expect(os.MkdirAll(nodeBinDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(nodeBinDir, "node"), []byte("#!/bin/sh\n"), 0o755)).To(Succeed())

		out, code := e.runShim("npx")
		Expect(code).To(Equal(127), out)
		Expect(out).To(ContainSubstring("5.1.0"))
	})
}
