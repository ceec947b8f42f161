// pkg/builder/fetch.go
package builder

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
)

// FetchStep downloads a source archive into the work directory and
// extracts it in place. Downloads are the one transient operation in a
// build: they retry up to fetchAttempts times with a fixed backoff.
type FetchStep struct {
	name    string
	url     string
	strip   int
	client  *http.Client
	log     *zap.Logger
	backoff time.Duration // zero means fetchBackoff
}

func (s *FetchStep) Name() string { return s.name }

func (s *FetchStep) Run(ctx context.Context, sc *StepContext) error {
	archiveName := path.Base(s.url)
	archivePath := filepath.Join(sc.WorkDir, archiveName)

	err := withRetry(ctx, s.log, "fetch "+s.url, fetchAttempts, backoffOrDefault(s.backoff), func() error {
		return s.download(ctx, archivePath)
	})
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	fmt.Fprintf(sc.Log, "extracting %s\n", archiveName)
	if err := extractArchive(archivePath, sc.WorkDir, s.strip); err != nil {
		return fmt.Errorf("extracting %s: %w", archiveName, err)
	}
	return nil
}

func (s *FetchStep) download(ctx context.Context, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "forge/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// extractArchive unpacks a tar archive, decompressing by file suffix.
func extractArchive(archivePath, destDir string, strip int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var tarReader *tar.Reader
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzReader.Close()
		tarReader = tar.NewReader(gzReader)
	case strings.HasSuffix(archivePath, ".tar.xz"):
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		tarReader = tar.NewReader(xzReader)
	case strings.HasSuffix(archivePath, ".tar.bz2"):
		tarReader = tar.NewReader(bzip2.NewReader(f))
	case strings.HasSuffix(archivePath, ".tar"):
		tarReader = tar.NewReader(f)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		cleanPath := stripComponents(strings.TrimPrefix(header.Name, "./"), strip)
		if cleanPath == "" {
			continue
		}
		targetPath := filepath.Join(destDir, cleanPath)
		if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(header.Mode)|0o700); err != nil {
				return fmt.Errorf("creating directory %s: %w", cleanPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("creating parent for %s: %w", cleanPath, err)
			}
			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("creating file %s: %w", cleanPath, err)
			}
			if _, err := io.Copy(out, tarReader); err != nil {
				out.Close()
				return fmt.Errorf("writing file %s: %w", cleanPath, err)
			}
			out.Close()
		case tar.TypeSymlink:
			os.Remove(targetPath)
			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return fmt.Errorf("creating symlink %s: %w", cleanPath, err)
			}
		}
	}
	return nil
}

// stripComponents drops the first n path elements, mirroring
// tar --strip-components.
func stripComponents(name string, n int) string {
	if n <= 0 {
		return name
	}
	parts := strings.Split(name, "/")
	if len(parts) <= n {
		return ""
	}
	return strings.Join(parts[n:], "/")
}
