package ffsys

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// Upstream locations.
const (
	DefaultRepoURL    = "https://github.com/FFmpeg/FFmpeg"
	DefaultReleaseURL = "https://ffmpeg.org/releases"
)

var versionRE = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// ValidVersion reports whether v has the MAJOR.MINOR form used by upstream
// release branches.
func ValidVersion(v string) bool {
	return versionRE.MatchString(v)
}

// Fetcher materializes the sources of one FFmpeg release into dest.
// Anything already at dest is removed first.
type Fetcher interface {
	Fetch(ctx context.Context, version, dest string) error
}

// GitFetcher shallow-clones the release/X.Y branch.
type GitFetcher struct {
	// URL overrides [DefaultRepoURL].
	URL string
	// Progress receives the clone progress when set.
	Progress io.Writer
	Logger   *zerolog.Logger
}

// Fetch implements [Fetcher].
func (f GitFetcher) Fetch(ctx context.Context, version, dest string) error {
	if !ValidVersion(version) {
		return &StageError{Stage: StageFetch, Err: fmt.Errorf("invalid version %q", version)}
	}
	url := f.URL
	if url == "" {
		url = DefaultRepoURL
	}
	branch := "release/" + version

	logger := loggerFor(ctx, f.Logger)
	logger.Info().
		Str(ffslog.FieldStage, string(StageFetch)).
		Str(ffslog.FieldDir, dest).
		Str("url", url).
		Str("branch", branch).
		Msg("cloning sources")

	if err := os.RemoveAll(dest); err != nil {
		return &StageError{Stage: StageFetch, Err: fmt.Errorf("clearing %s: %w", dest, err)}
	}

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
		Progress:      f.Progress,
	})
	if err != nil {
		return &StageError{Stage: StageFetch, Cmd: "git clone " + url, Err: err}
	}
	return nil
}

// TarballFetcher downloads and unpacks ffmpeg-X.Y.tar.xz from the release
// mirror.
type TarballFetcher struct {
	// BaseURL overrides [DefaultReleaseURL].
	BaseURL string
	Client  *http.Client
	Logger  *zerolog.Logger
}

// Fetch implements [Fetcher]. The archive's single top-level directory is
// stripped so that dest itself holds the configure script.
func (f TarballFetcher) Fetch(ctx context.Context, version, dest string) error {
	if !ValidVersion(version) {
		return &StageError{Stage: StageFetch, Err: fmt.Errorf("invalid version %q", version)}
	}
	base := f.BaseURL
	if base == "" {
		base = DefaultReleaseURL
	}
	url := fmt.Sprintf("%s/ffmpeg-%s.tar.xz", strings.TrimSuffix(base, "/"), version)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	logger := loggerFor(ctx, f.Logger)
	logger.Info().
		Str(ffslog.FieldStage, string(StageFetch)).
		Str(ffslog.FieldDir, dest).
		Str("url", url).
		Msg("downloading sources")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &StageError{Stage: StageFetch, Cmd: "GET " + url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StageError{Stage: StageFetch, Cmd: "GET " + url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.RemoveAll(dest); err != nil {
		return &StageError{Stage: StageFetch, Err: fmt.Errorf("clearing %s: %w", dest, err)}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}

	xzr, err := xz.NewReader(resp.Body)
	if err != nil {
		return &StageError{Stage: StageFetch, Cmd: "GET " + url, Err: fmt.Errorf("creating xz reader: %w", err)}
	}
	n, err := extractTar(tar.NewReader(xzr), dest, 1)
	if err != nil {
		return &StageError{Stage: StageFetch, Cmd: "GET " + url, Err: err}
	}
	logger.Debug().Int("entries", n).Str(ffslog.FieldDir, dest).Msg("sources extracted")
	return nil
}

var errUnsafeLink = errors.New("link target escapes the extraction root")

// extractTar unpacks tr under root, dropping the first strip path
// components of every entry. Entry names and hard-link targets are resolved
// with SecureJoin so nothing lands outside root.
func extractTar(tr *tar.Reader, root string, strip int) (int, error) {
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("reading tar entry: %w", err)
		}

		name := stripComponents(hdr.Name, strip)
		if name == "" {
			continue
		}
		target, err := securejoin.SecureJoin(root, name)
		if err != nil {
			return count, fmt.Errorf("resolving %s: %w", hdr.Name, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return count, err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return count, fmt.Errorf("%s -> %s: %w", hdr.Name, hdr.Linkname, errUnsafeLink)
			}
			resolved := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if rel, err := filepath.Rel(root, resolved); err != nil || escapesRoot(rel) {
				return count, fmt.Errorf("%s -> %s: %w", hdr.Name, hdr.Linkname, errUnsafeLink)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return count, err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return count, fmt.Errorf("creating symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			src, err := securejoin.SecureJoin(root, stripComponents(hdr.Linkname, strip))
			if err != nil {
				return count, fmt.Errorf("resolving %s: %w", hdr.Linkname, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return count, err
			}
			if err := os.Link(src, target); err != nil {
				return count, fmt.Errorf("creating hard link %s: %w", target, err)
			}
		default:
			// pax headers and device nodes are not part of a source release
			continue
		}
		count++
	}
}

// escapesRoot reports whether a path relative to the extraction root leads
// out of it. Names merely starting with dots, like "..data", stay inside.
func escapesRoot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeEntry(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}

func stripComponents(name string, n int) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) <= n {
		return ""
	}
	return strings.Join(parts[n:], "/")
}
