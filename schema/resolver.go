// Package schema resolves a detected format+version to a local, verified
// schema bundle. Bundles are fetched over HTTP as zip archives, extracted
// under a deterministic cache path and reused on every subsequent
// resolution until explicitly cleared or invalidated by a checksum
// mismatch on refresh.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Default schema bundle sources. {version} is replaced with the requested
// version; an override template may also use {schema}.
var defaultSources = map[string]string{
	"netex": "https://github.com/NeTEx-CEN/NeTEx/archive/refs/tags/v{version}.zip",
	"siri":  "https://github.com/SIRI-CEN/SIRI/archive/refs/tags/v{version}.zip",
}

// Conventional entry-point XSD base names per schema id.
var entryCandidates = map[string][]string{
	"netex": {"NeTEx_publication.xsd"},
	"siri":  {"siri.xsd"},
}

// ErrEntryNotFound is returned when no entry-point XSD can be determined
// inside a bundle.
var ErrEntryNotFound = errors.New("schema entry point not found")

// ErrBundleNotFound is returned when the configured source has no bundle
// for the requested schema version.
var ErrBundleNotFound = errors.New("schema bundle not found")

// DefaultTimeout bounds a single bundle download.
const DefaultTimeout = 120 * time.Second

// entryFileName is the per-version metadata file.
const entryFileName = "entry.json"

// Entry is a cached, ready-to-use schema bundle.
type Entry struct {
	SchemaID    string    `json:"schemaId"`
	Version     string    `json:"version"`
	BundleDir   string    `json:"bundleDir"`
	EntryFile   string    `json:"entryFile,omitempty"`
	RetrievedAt time.Time `json:"retrievedAt"`
	Checksum    string    `json:"checksum"`
}

// Resolver maps (schemaID, version) pairs to cached schema bundles. It is
// safe for concurrent use; concurrent misses for the same pair collapse
// into a single underlying fetch.
type Resolver struct {
	cacheDir string
	source   string
	client   *http.Client
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Entry

	group singleflight.Group
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithCacheDir sets the on-disk cache location.
func WithCacheDir(dir string) Option {
	return func(r *Resolver) {
		r.cacheDir = dir
	}
}

// WithSource overrides the bundle fetch location for every schema id. The
// template may contain {schema} and {version} placeholders.
func WithSource(template string) Option {
	return func(r *Resolver) {
		r.source = template
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver. The default cache directory is
// .txvalidator/schemas under the user's home directory.
func NewResolver(opts ...Option) *Resolver {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	r := &Resolver{
		cacheDir: filepath.Join(homeDir, ".txvalidator", "schemas"),
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   zap.NewNop(),
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CacheDir returns the cache directory path.
func (r *Resolver) CacheDir() string {
	return r.cacheDir
}

// Ensure returns a ready-to-use cached entry for the pair, fetching the
// bundle on a cold cache. A cache hit never touches the network.
//
// Cancelling ctx abandons the wait, not the fetch: an in-flight download
// keeps running detached so it can populate the cache for future callers.
func (r *Resolver) Ensure(ctx context.Context, schemaID, version string) (*Entry, error) {
	return r.EnsureFrom(ctx, schemaID, version, "")
}

// EnsureFrom is Ensure with a per-call source template override. An empty
// source uses the resolver's configured source. The cache layout is keyed
// by (schemaID, version) regardless of source, so a bundle already cached
// under the pair is reused without fetching.
func (r *Resolver) EnsureFrom(ctx context.Context, schemaID, version, source string) (*Entry, error) {
	key := cacheKey(schemaID, version)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return entry, nil
	}

	if entry, err := r.loadFromDisk(schemaID, version); err == nil {
		r.remember(key, entry)
		return entry, nil
	}

	flightKey := key
	if source != "" {
		flightKey = key + "@" + source
	}
	ch := r.group.DoChan(flightKey, func() (any, error) {
		// Detached from the caller so cancellation cannot waste a
		// partially completed download.
		entry, err := r.fetch(context.WithoutCancel(ctx), schemaID, version, source)
		if err != nil {
			return nil, err
		}
		r.remember(key, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ensure schema %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", key, res.Err)
		}
		return res.Val.(*Entry), nil
	}
}

// Refresh re-downloads the bundle and compares checksums. On a mismatch
// the cached entry is replaced by the fresh one; on a match the existing
// entry is kept.
func (r *Resolver) Refresh(ctx context.Context, schemaID, version string) (*Entry, error) {
	key := cacheKey(schemaID, version)

	current, err := r.Ensure(ctx, schemaID, version)
	if err != nil {
		return nil, err
	}

	fresh, err := r.fetchToTemp(ctx, schemaID, version, "")
	if err != nil {
		return nil, fmt.Errorf("refresh schema %s: %w", key, err)
	}
	if fresh.checksum == current.Checksum {
		fresh.discard()
		return current, nil
	}

	r.logger.Info("schema bundle changed upstream, invalidating cache",
		zap.String("schema", schemaID),
		zap.String("version", version))
	if err := r.evict(schemaID, version); err != nil {
		fresh.discard()
		return nil, err
	}
	entry, err := fresh.commit(r, schemaID, version)
	if err != nil {
		return nil, err
	}
	r.remember(key, entry)
	return entry, nil
}

// Clear evicts every cached version of schemaID, on disk and in memory.
// A subsequent Ensure re-fetches.
func (r *Resolver) Clear(schemaID string) error {
	r.mu.Lock()
	for key := range r.entries {
		if strings.HasPrefix(key, schemaID+"@") {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
	return os.RemoveAll(filepath.Join(r.cacheDir, schemaID))
}

// ClearAll evicts the whole cache.
func (r *Resolver) ClearAll() error {
	r.mu.Lock()
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()
	return os.RemoveAll(r.cacheDir)
}

// EntryXSD determines which file inside the bundle is the schema's entry
// point. The recorded entry file wins; otherwise the bundle is searched
// for a conventional entry name, preferring the shallowest match. Wraps
// ErrEntryNotFound when nothing can be determined.
func (r *Resolver) EntryXSD(entry *Entry) (string, error) {
	if entry.EntryFile != "" {
		p := filepath.Join(entry.BundleDir, entry.EntryFile)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	rel, err := findInBundle(entry.BundleDir, entryCandidates[entry.SchemaID])
	if err != nil {
		return "", fmt.Errorf("%w: %s@%s in %s", ErrEntryNotFound, entry.SchemaID, entry.Version, entry.BundleDir)
	}
	return filepath.Join(entry.BundleDir, rel), nil
}

// sourceURL expands the source template for a pair. An explicit override
// wins over the resolver's configured source and the built-in default.
func (r *Resolver) sourceURL(schemaID, version, override string) (string, error) {
	template := override
	if template == "" {
		template = r.source
	}
	if template == "" {
		template = defaultSources[schemaID]
	}
	if template == "" {
		return "", fmt.Errorf("no schema source configured for %q", schemaID)
	}
	url := strings.ReplaceAll(template, "{schema}", schemaID)
	url = strings.ReplaceAll(url, "{version}", version)
	return url, nil
}

// versionDir is the deterministic cache path for a pair.
func (r *Resolver) versionDir(schemaID, version string) string {
	return filepath.Join(r.cacheDir, schemaID, version)
}

// loadFromDisk restores a previously persisted entry.
func (r *Resolver) loadFromDisk(schemaID, version string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(r.versionDir(schemaID, version), entryFileName))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s@%s: %w", schemaID, version, err)
	}
	if _, err := os.Stat(entry.BundleDir); err != nil {
		return nil, fmt.Errorf("cached bundle missing for %s@%s: %w", schemaID, version, err)
	}
	return &entry, nil
}

func (r *Resolver) remember(key string, entry *Entry) {
	r.mu.Lock()
	r.entries[key] = entry
	r.mu.Unlock()
}

func (r *Resolver) evict(schemaID, version string) error {
	r.mu.Lock()
	delete(r.entries, cacheKey(schemaID, version))
	r.mu.Unlock()
	return os.RemoveAll(r.versionDir(schemaID, version))
}

func cacheKey(schemaID, version string) string {
	return schemaID + "@" + version
}
