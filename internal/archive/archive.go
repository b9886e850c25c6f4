// Package archive extracts downloaded dataset tarballs into place.
//
// Extraction always lands in a fresh scratch directory beside the target;
// only a fully extracted and structurally valid tree is moved onto the
// target, so a failed install never leaves it partially populated.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/koalasec/photon-sync/internal/logger"
)

// InstallError reports a failed extraction or a structurally invalid result.
type InstallError struct {
	Archive string
	Reason  string
	Err     error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("install of %s failed: %s: %v", e.Archive, e.Reason, e.Err)
	}
	return fmt.Sprintf("install of %s failed: %s", e.Archive, e.Reason)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Installer extracts archives and validates their structure.
type Installer struct {
	log logger.Logger
	// expectTopLevel are directory entries that must exist at the root of
	// the extracted tree for it to count as complete.
	expectTopLevel []string
	uid, gid       int
}

// Option configures an Installer.
type Option func(*Installer)

// WithExpectedTopLevel sets the top-level entries a complete dataset must
// contain.
func WithExpectedTopLevel(entries ...string) Option {
	return func(i *Installer) { i.expectTopLevel = entries }
}

// WithOwnership chowns extracted files to uid:gid. Negative values leave
// ownership untouched.
func WithOwnership(uid, gid int) Option {
	return func(i *Installer) {
		i.uid = uid
		i.gid = gid
	}
}

// New creates an Installer.
func New(log logger.Logger, opts ...Option) *Installer {
	inst := &Installer{log: log, uid: -1, gid: -1}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Install extracts archivePath and atomically replaces targetDir with the
// result. The scratch directory lives beside targetDir so the final move is
// a same-filesystem rename.
func (i *Installer) Install(ctx context.Context, archivePath, targetDir string) error {
	scratch := targetDir + ".extract"
	if err := os.RemoveAll(scratch); err != nil {
		return &InstallError{Archive: archivePath, Reason: "failed to clear scratch directory", Err: err}
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return &InstallError{Archive: archivePath, Reason: "failed to create scratch directory", Err: err}
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	i.log.Infof("extracting %s", filepath.Base(archivePath))
	if err := i.extract(ctx, archivePath, scratch); err != nil {
		return &InstallError{Archive: archivePath, Reason: "extraction failed", Err: err}
	}

	if err := i.validate(scratch); err != nil {
		return &InstallError{Archive: archivePath, Reason: "extracted tree is incomplete", Err: err}
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return &InstallError{Archive: archivePath, Reason: "failed to clear target directory", Err: err}
	}
	if err := os.Rename(scratch, targetDir); err != nil {
		return &InstallError{Archive: archivePath, Reason: "failed to move extracted tree into place", Err: err}
	}
	return nil
}

// validate confirms the extracted tree is non-empty and has the expected
// top-level entries.
func (i *Installer) validate(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries extracted")
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, want := range i.expectTopLevel {
		if !names[want] {
			return fmt.Errorf("missing expected top-level entry %q", want)
		}
	}
	return nil
}

// extract unpacks the tarball at archivePath into dir, choosing the
// decompressor from the file extension.
func (i *Installer) extract(ctx context.Context, archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	decompressed, closeDecomp, err := decompressor(archivePath, f)
	if err != nil {
		return err
	}
	defer closeDecomp()

	tr := tar.NewReader(decompressed)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("corrupt archive: %w", err)
		}

		if err := i.writeEntry(dir, hdr, tr); err != nil {
			return err
		}
	}
}

// decompressor returns a reader over the decompressed byte stream.
func decompressor(archivePath string, r io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(archivePath, ".tar.bz2"), strings.HasSuffix(archivePath, ".tbz2"):
		return bzip2.NewReader(r), func() {}, nil
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(archivePath, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(archivePath, ".tar"):
		return r, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

// safeJoin resolves an archive entry name inside dir, rejecting traversal.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry has absolute path: %s", name)
	}
	path := filepath.Join(dir, name)
	if path != dir && !strings.HasPrefix(path, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction directory: %s", name)
	}
	return path, nil
}

func (i *Installer) writeEntry(dir string, hdr *tar.Header, r io.Reader) error {
	path, err := safeJoin(dir, hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(path, os.FileMode(hdr.Mode)&os.ModePerm|0o700); err != nil {
			return err
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&os.ModePerm)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, r)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("archive symlink has absolute target: %s", hdr.Name)
		}
		if err := os.Symlink(hdr.Linkname, path); err != nil {
			return err
		}
	default:
		// Hard links, devices, and the like do not occur in dataset
		// archives; skip rather than fail.
		i.log.Debugf("skipping archive entry %s (type %c)", hdr.Name, hdr.Typeflag)
		return nil
	}

	if i.uid >= 0 || i.gid >= 0 {
		if err := os.Lchown(path, i.uid, i.gid); err != nil {
			i.log.Warnf("failed to chown %s: %v", path, err)
		}
	}
	return nil
}
