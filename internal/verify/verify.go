// Package verify streams files against expected checksums.
//
// The remote contract publishes md5sum-style sidecar files next to each
// archive, so MD5 is the default digest. The hash constructor is pluggable
// for mirrors that publish a different one.
package verify

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// chunkSize bounds memory regardless of file size.
const chunkSize = 256 * 1024

// ChecksumMismatchError reports a digest that did not match.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Verifier computes streaming checksums with a configurable hash.
type Verifier struct {
	newHash func() hash.Hash
}

// New returns a Verifier using the given hash constructor, or MD5 when nil.
func New(newHash func() hash.Hash) *Verifier {
	if newHash == nil {
		newHash = md5.New
	}
	return &Verifier{newHash: newHash}
}

// Sum returns the hex digest of the file at path, reading it in fixed-size
// chunks.
func (v *Verifier) Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := v.newHash()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the file at path against the expected hex digest.
func (v *Verifier) Verify(path, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return fmt.Errorf("empty expected checksum for %s", path)
	}

	actual, err := v.Sum(path)
	if err != nil {
		return err
	}

	if actual != expected {
		return &ChecksumMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}

// VerifyAgainstSidecar checks the file at path against an md5sum-style
// sidecar file ("<hex digest>  <filename>").
func (v *Verifier) VerifyAgainstSidecar(path, sidecarPath string) error {
	expected, err := ParseSidecar(sidecarPath)
	if err != nil {
		return err
	}
	return v.Verify(path, expected)
}

// ParseSidecar extracts the digest from a checksum sidecar file. The first
// whitespace-separated field of the first non-empty line is the digest.
func ParseSidecar(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open checksum file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		digest := strings.ToLower(fields[0])
		if _, err := hex.DecodeString(digest); err != nil {
			return "", fmt.Errorf("malformed digest in %s: %q", path, fields[0])
		}
		return digest, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read checksum file %s: %w", path, err)
	}

	return "", fmt.Errorf("no digest found in %s", path)
}
