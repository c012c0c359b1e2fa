package schema

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBundleFileSize bounds a single extracted file to keep decompression
// bombs out of the cache.
const maxBundleFileSize = 256 * 1024 * 1024

// pendingBundle is a downloaded but not yet committed zip archive.
type pendingBundle struct {
	zipPath  string
	checksum string
}

func (p *pendingBundle) discard() {
	os.Remove(p.zipPath)
}

// commit extracts the pending archive into the pair's cache directory and
// persists the entry metadata.
func (p *pendingBundle) commit(r *Resolver, schemaID, version string) (*Entry, error) {
	defer p.discard()

	dir := r.versionDir(schemaID, version)
	bundleDir := filepath.Join(dir, "bundle")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := extractZip(p.zipPath, bundleDir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("extract schema bundle: %w", err)
	}

	entry := &Entry{
		SchemaID:    schemaID,
		Version:     version,
		BundleDir:   bundleDir,
		RetrievedAt: time.Now().UTC(),
		Checksum:    p.checksum,
	}
	if candidates := entryCandidates[schemaID]; len(candidates) > 0 {
		if rel, err := findInBundle(bundleDir, candidates); err == nil {
			entry.EntryFile = rel
		}
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, entryFileName), data, 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("persist cache entry: %w", err)
	}
	return entry, nil
}

// fetch downloads, extracts and records a bundle for the pair.
func (r *Resolver) fetch(ctx context.Context, schemaID, version, source string) (*Entry, error) {
	pending, err := r.fetchToTemp(ctx, schemaID, version, source)
	if err != nil {
		return nil, err
	}
	return pending.commit(r, schemaID, version)
}

// fetchToTemp downloads the bundle zip to a temporary file and records its
// checksum without touching the cache.
func (r *Resolver) fetchToTemp(ctx context.Context, schemaID, version, source string) (*pendingBundle, error) {
	url, err := r.sourceURL(schemaID, version, source)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("fetching schema bundle",
		zap.String("schema", schemaID),
		zap.String("version", version),
		zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download schema bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("download schema bundle %s@%s: %w", schemaID, version, ErrBundleNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download schema bundle %s@%s: status %d", schemaID, version, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "txvalidator-schema-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("download schema bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &pendingBundle{
		zipPath:  tmp.Name(),
		checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// extractZip extracts an archive to destDir, refusing entries that would
// escape it.
func extractZip(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("invalid zip path: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	// 0644 regardless of archive mode, matching the rest of the cache.
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, maxBundleFileSize)); err != nil {
		dst.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return dst.Close()
}

// findInBundle returns the relative path of the shallowest file whose base
// name is one of candidates.
func findInBundle(bundleDir string, candidates []string) (string, error) {
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	best := ""
	bestDepth := 0
	err := filepath.WalkDir(bundleDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !want[filepath.Base(path)] {
			return nil
		}
		rel, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator))
		if best == "" || depth < bestDepth {
			best = rel
			bestDepth = depth
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", ErrEntryNotFound
	}
	return best, nil
}
