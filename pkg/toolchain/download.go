// Package toolchain downloads and unpacks language toolchains into the
// store's toolchains/ area. Every download lands in the scratch directory
// first and is renamed into place atomically, so a crashed install never
// leaves a half-written toolchain behind.
package toolchain

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaneholloman/prek/pkg/store"
)

// NativeTLSEnvVar, when set, switches downloads to a transport that requires
// TLS 1.2 or newer. Certificates are verified against the OS trust store
// whether or not it is set; no bundled roots are shipped.
const NativeTLSEnvVar = "PREK_NATIVE_TLS"

// Downloader fetches archives and installs them into the store.
type Downloader struct {
	store  *store.Store
	client *http.Client
}

// NewDownloader builds a Downloader against s.
func NewDownloader(s *store.Store) *Downloader {
	transport := http.DefaultTransport
	if os.Getenv(NativeTLSEnvVar) != "" {
		// A nil RootCAs makes crypto/tls verify against the system
		// certificate pool.
		transport = &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}}
	}
	return &Downloader{
		store:  s,
		client: &http.Client{Timeout: 10 * time.Minute, Transport: transport},
	}
}

// Installed reports whether a toolchain directory already exists.
func (d *Downloader) Installed(language, version string) (string, bool) {
	path := d.store.PathFor(store.KindToolchain, store.ToolchainKey(language, version))
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return path, false
}

// Fetch downloads url, unpacks the archive, and installs it as the
// toolchain directory for (language, version), holding the store's
// toolchain lock so concurrent installers for the same version serialize.
// stripRoot removes the archive's single top-level directory.
func (d *Downloader) Fetch(ctx context.Context, language, version, url string, stripRoot bool) (string, error) {
	dest, ok := d.Installed(language, version)
	if ok {
		return dest, nil
	}

	lock, err := d.store.LockExclusive(ctx, store.KindToolchain, language+"-"+version)
	if err != nil {
		return "", err
	}
	defer func() { _ = lock.Release() }()

	// Re-check under the lock; another process may have won.
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	scratch, err := d.store.ScratchDir("toolchain")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	archivePath := filepath.Join(scratch, "archive"+archiveExt(url))
	if err := d.downloadFile(ctx, url, archivePath); err != nil {
		return "", err
	}

	unpacked := filepath.Join(scratch, "unpacked")
	if err := extract(archivePath, unpacked); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", url, err)
	}

	installRoot := unpacked
	if stripRoot {
		installRoot, err = singleChild(unpacked)
		if err != nil {
			return "", fmt.Errorf("unexpected archive layout for %s: %w", url, err)
		}
	}

	if err := store.AtomicRename(installRoot, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (d *Downloader) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download from %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d for %s", resp.StatusCode, url)
	}

	f, err := os.Create(dest) // #nosec G304 -- scratch-internal path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func archiveExt(url string) string {
	switch {
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return ".tar.gz"
	case strings.HasSuffix(url, ".zip"):
		return ".zip"
	case strings.HasSuffix(url, ".tar.xz"):
		return ".tar.xz"
	default:
		return filepath.Ext(url)
	}
}

func extract(archivePath, dest string) error {
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"):
		return extractTarGz(archivePath, dest)
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, dest)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Ext(archivePath))
	}
}

func extractTarGz(archivePath, dest string) error {
	f, err := os.Open(archivePath) // #nosec G304 -- scratch-internal path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777) // #nosec G304
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil { // #nosec G110 -- trusted toolchain archives
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		}
	}
}

func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode()&0o777) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, rc) // #nosec G110 -- trusted toolchain archives
	return err
}

// safeJoin rejects archive entries that would escape dest.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// singleChild returns the sole subdirectory of dir.
func singleChild(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	if len(dirs) != 1 {
		return "", fmt.Errorf("expected one top-level directory, found %d", len(dirs))
	}
	return dirs[0], nil
}
