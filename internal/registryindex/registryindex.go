// Package registryindex fetches and parses the remote documents the
// resolver consults: the Node distribution index, and npm/Yarn registry
// package documents (for their dist-tags maps). The Node index shape and
// its LTS-field quirk are grounded on volta-core's tool/node/metadata.rs
// (see original_source); the npm registry document shape is grounded on
// volta-core's tool/registry.go PackageIndex/RawPackageMetadata.
package registryindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/railyard/railyard/internal/apperrors"
)

// NodeEntry is one row of the Node distribution index.
type NodeEntry struct {
	Version string   `json:"version"`
	Npm     string   `json:"npm"`
	Files   []string `json:"files"`
	LTS     bool     `json:"-"`
}

// nodeEntryJSON mirrors the wire shape, where "lts" is either false, null,
// or a codename string (truthy). Decoding through this intermediate
// reproduces volta-core's lts_version_serde trick in Go.
type nodeEntryJSON struct {
	Version string          `json:"version"`
	Npm     string          `json:"npm"`
	Files   []string        `json:"files"`
	LTS     json.RawMessage `json:"lts"`
}

func (e *NodeEntry) UnmarshalJSON(data []byte) error {
	var raw nodeEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Version = raw.Version
	e.Npm = raw.Npm
	e.Files = raw.Files
	e.LTS = isTruthyLTS(raw.LTS)
	return nil
}

func isTruthyLTS(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return asBool
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString != ""
	}
	return false
}

// HasDistro reports whether the entry publishes a file list entry for the
// given OS/arch distro identifier (e.g. "linux-x64", "osx-x64-tar").
func (e NodeEntry) HasDistro(distro string) bool {
	for _, f := range e.Files {
		if f == distro {
			return true
		}
	}
	return false
}

// NodeIndex is the Node distribution index: a newest-first list of entries.
type NodeIndex []NodeEntry

// Latest returns the first entry publishing distro, or false if none do.
func (idx NodeIndex) Latest(distro string) (NodeEntry, bool) {
	for _, e := range idx {
		if e.HasDistro(distro) {
			return e, true
		}
	}
	return NodeEntry{}, false
}

// LTS returns the first entry marked LTS that also publishes distro.
func (idx NodeIndex) LTS(distro string) (NodeEntry, bool) {
	for _, e := range idx {
		if e.LTS && e.HasDistro(distro) {
			return e, true
		}
	}
	return NodeEntry{}, false
}

// RegistryDocument is the subset of an npm/Yarn registry package document
// this tool needs: the dist-tags map used for tag/latest resolution, and
// per-version metadata keyed by version string.
type RegistryDocument struct {
	DistTags map[string]string         `json:"dist-tags"`
	Versions map[string]RegistryDetail `json:"versions"`
}

// RegistryDetail is one version's entry in a registry document.
type RegistryDetail struct {
	Version string    `json:"version"`
	Dist    DistFields `json:"dist"`
}

// DistFields is the "dist" sub-object of a registry version entry.
type DistFields struct {
	Tarball string `json:"tarball"`
	Shasum  string `json:"shasum"`
}

// Fetcher fetches and caches the Node index and registry documents.
type Fetcher struct {
	HTTPClient *http.Client
	CacheDir   string
	// TTL is how long a cached document is considered fresh.
	TTL time.Duration
}

// NewFetcher builds a Fetcher with sane defaults.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		HTTPClient: http.DefaultClient,
		CacheDir:   cacheDir,
		TTL:        time.Hour,
	}
}

const nodeIndexURL = "https://nodejs.org/dist/index.json"

func npmRegistryURL(name string) string {
	return fmt.Sprintf("https://registry.npmjs.org/%s", name)
}

func yarnRegistryURL() string {
	return "https://registry.npmjs.org/yarn"
}

// FetchNodeIndex returns the Node distribution index, consulting the cache
// first and refreshing on expiry, per §4.1's caching rule.
func (f *Fetcher) FetchNodeIndex(ctx context.Context, overrideURL string) (NodeIndex, error) {
	cachePath := filepath.Join(f.CacheDir, "node", "index.json")
	expiryPath := cachePath + ".expires"

	if fresh, ok := f.readCacheIfFresh(cachePath, expiryPath); ok {
		var idx NodeIndex
		if err := json.Unmarshal(fresh, &idx); err == nil {
			return idx, nil
		}
	}

	url := nodeIndexURL
	if overrideURL != "" {
		url = overrideURL
	}

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var idx NodeIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse node index", err)
	}

	f.writeCache(cachePath, expiryPath, body)
	return idx, nil
}

// FetchRegistryDocument fetches the npm/Yarn registry document for name,
// honoring an override URL from a hook's "index" field.
func (f *Fetcher) FetchRegistryDocument(ctx context.Context, name, overrideURL string) (*RegistryDocument, error) {
	url := overrideURL
	if url == "" {
		if name == "yarn" {
			url = yarnRegistryURL()
		} else {
			url = npmRegistryURL(name)
		}
	}

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var doc RegistryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse registry document", err)
	}
	return &doc, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNetwork, "failed to build request", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CategoryNetwork, "request to %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.CategoryNetwork, "unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNetwork, "failed to read response body", err)
	}
	return body, nil
}

// readCacheIfFresh returns the cached body if its expiry file holds a
// future timestamp. A missing expiry file is treated as expired (§7).
func (f *Fetcher) readCacheIfFresh(cachePath, expiryPath string) ([]byte, bool) {
	expiryRaw, err := os.ReadFile(expiryPath)
	if err != nil {
		return nil, false
	}

	expiresAt, err := time.Parse(time.RFC3339, string(expiryRaw))
	if err != nil || time.Now().After(expiresAt) {
		return nil, false
	}

	body, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	return body, true
}

func (f *Fetcher) writeCache(cachePath, expiryPath string, body []byte) {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(cachePath, body, 0o644)
	_ = os.WriteFile(expiryPath, []byte(time.Now().Add(f.TTL).Format(time.RFC3339)), 0o644)
}
