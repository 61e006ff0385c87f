//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/railyard/railyard/internal/session"
)

// nodeIndexEntry mirrors registryindex's wire shape for one Node release.
type nodeIndexEntry struct {
	Version string   `json:"version"`
	Npm     string   `json:"npm"`
	Files   []string `json:"files"`
	LTS     any      `json:"lts"`
}

// fixtureServer is a local stand-in for nodejs.org/registry.npmjs.org,
// recording every path it is asked for so tests can assert on hook
// redirection without touching the real network.
type fixtureServer struct {
	*httptest.Server

	mu   sync.Mutex
	hits []string
}

func newFixtureServer(handler http.HandlerFunc) *fixtureServer {
	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits = append(fs.hits, r.URL.Path)
		fs.mu.Unlock()
		handler(w, r)
	}))
	return fs
}

func (fs *fixtureServer) hitPaths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, len(fs.hits))
	copy(out, fs.hits)
	return out
}

// nodeIndexServer serves a Node distribution index at "/" containing one
// entry per version in versions, all publishing the current platform's
// distro file so the resolver's HasDistro check passes.
func nodeIndexServer(versions ...string) *fixtureServer {
	distro := session.NodeDistroID()
	var entries []nodeIndexEntry
	for _, v := range versions {
		entries = append(entries, nodeIndexEntry{Version: "v" + v, Npm: "1.0.0", Files: []string{distro}, LTS: false})
	}
	body, _ := json.Marshal(entries)

	return newFixtureServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}

// tarballServer serves a fixed archive body at every path it receives,
// regardless of the requested path, so a hook template URL can point
// anywhere on it.
func tarballServer(body []byte) *fixtureServer {
	return newFixtureServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	})
}
