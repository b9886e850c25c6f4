// Package snapshot manages the on-disk dataset generations and their atomic
// promotion.
//
// The data root holds at most three generation directories: current (the only
// one the service may serve), staging (being prepared), and previous (kept
// until the next gc). Promotion is a rename sequence; an ACTIVE marker file
// written after both renames makes a crash mid-sequence recoverable by
// re-deriving which directory is current.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/types"
)

const (
	markerFile   = "ACTIVE"
	metadataFile = "metadata.json"
	downloadsDir = "downloads"
)

// PromotionError reports a failed promotion step.
type PromotionError struct {
	Op  string
	Err error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promotion failed while %s: %v", e.Op, e.Err)
}

func (e *PromotionError) Unwrap() error { return e.Err }

// Store owns the generation directories under one data root. It is the only
// component allowed to rename or delete them.
type Store struct {
	root string
	log  logger.Logger
}

// Open prepares the data root and recovers from any interrupted promotion.
func Open(root string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data root %s: %w", root, err)
	}
	s := &Store{root: root, log: log}
	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the data root directory.
func (s *Store) Root() string { return s.root }

// Current returns the path of the serving generation directory.
func (s *Store) Current() string { return filepath.Join(s.root, types.GenerationCurrent.String()) }

// Staging returns the path of the generation being prepared.
func (s *Store) Staging() string { return filepath.Join(s.root, types.GenerationStaging.String()) }

// Previous returns the path of the retained prior generation.
func (s *Store) Previous() string { return filepath.Join(s.root, types.GenerationPrevious.String()) }

// DownloadDir returns the scratch area for in-flight archive downloads.
func (s *Store) DownloadDir() string { return filepath.Join(s.root, downloadsDir) }

// HasCurrent reports whether a complete, promoted generation exists.
func (s *Store) HasCurrent() bool {
	return fileExists(filepath.Join(s.Current(), markerFile))
}

// Promote makes the staged generation current:
// previous is cleared, current becomes previous, staging becomes current,
// and the marker is written last.
func (s *Store) Promote() error {
	if !dirExists(s.Staging()) {
		return &PromotionError{Op: "checking staging", Err: fmt.Errorf("staging directory %s does not exist", s.Staging())}
	}

	if err := os.RemoveAll(s.Previous()); err != nil {
		return &PromotionError{Op: "clearing previous", Err: err}
	}

	hadCurrent := dirExists(s.Current())
	if hadCurrent {
		if err := os.Rename(s.Current(), s.Previous()); err != nil {
			return &PromotionError{Op: "retiring current", Err: err}
		}
	}

	if err := os.Rename(s.Staging(), s.Current()); err != nil {
		// Put the old generation back so the store stays serveable.
		if hadCurrent {
			if rerr := os.Rename(s.Previous(), s.Current()); rerr != nil {
				s.log.Errorf("failed to restore current after aborted promotion: %v", rerr)
			}
		}
		return &PromotionError{Op: "activating staging", Err: err}
	}

	if err := s.writeMarker(s.Current()); err != nil {
		return &PromotionError{Op: "writing marker", Err: err}
	}
	return nil
}

// Rollback restores the previous generation as current. Used when a freshly
// promoted generation turns out to be unserveable.
func (s *Store) Rollback() error {
	if !dirExists(s.Previous()) {
		return fmt.Errorf("rollback impossible: no previous generation under %s", s.root)
	}

	if err := os.RemoveAll(s.Current()); err != nil {
		return fmt.Errorf("rollback failed clearing current: %w", err)
	}
	if err := os.Rename(s.Previous(), s.Current()); err != nil {
		return fmt.Errorf("rollback failed restoring previous: %w", err)
	}
	return s.writeMarker(s.Current())
}

// DiscardStaging removes any partially prepared generation and its scratch.
func (s *Store) DiscardStaging() error {
	if err := os.RemoveAll(s.Staging() + ".extract"); err != nil {
		return err
	}
	return os.RemoveAll(s.Staging())
}

// GC removes everything under the data root except the current and previous
// generations and the metadata record, bounding disk usage to at most two
// full generations.
func (s *Store) GC() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	keep := map[string]bool{
		types.GenerationCurrent.String():  true,
		types.GenerationPrevious.String(): true,
		metadataFile:                      true,
	}

	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		s.log.Debugf("gc: removing %s", path)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("gc failed removing %s: %w", path, err)
		}
	}
	return nil
}

// Generations lists the generation directories present under the root.
func (s *Store) Generations() []types.Generation {
	var out []types.Generation
	for _, g := range []types.Generation{types.GenerationCurrent, types.GenerationStaging, types.GenerationPrevious} {
		if dirExists(filepath.Join(s.root, g.String())) {
			out = append(out, g)
		}
	}
	return out
}

// recover re-derives which directory is current after a crash. The marker is
// the source of truth: it is only ever written after a promotion completed.
func (s *Store) recover() error {
	cur, prev := s.Current(), s.Previous()
	curMarked := fileExists(filepath.Join(cur, markerFile))
	prevMarked := fileExists(filepath.Join(prev, markerFile))

	switch {
	case curMarked:
		// Normal case.
		return nil

	case dirExists(cur) && prevMarked:
		// Promotion died between the staging rename and the marker write.
		// The unmarked tree may be incomplete; the marked previous is the
		// last generation known to be good.
		s.log.Warnf("recovering interrupted promotion: restoring previous generation")
		if err := os.RemoveAll(cur); err != nil {
			return fmt.Errorf("recovery failed clearing incomplete current: %w", err)
		}
		if err := os.Rename(prev, cur); err != nil {
			return fmt.Errorf("recovery failed restoring previous: %w", err)
		}
		return nil

	case !dirExists(cur) && dirExists(prev):
		// Promotion died after retiring current but before activating
		// staging.
		s.log.Warnf("recovering interrupted promotion: re-activating retired generation")
		if err := os.Rename(prev, cur); err != nil {
			return fmt.Errorf("recovery failed re-activating previous: %w", err)
		}
		if !prevMarked {
			return s.writeMarker(cur)
		}
		return nil

	case dirExists(cur):
		// A pre-existing dataset placed on the volume by other means.
		// Adopt it rather than re-downloading.
		s.log.Warnf("adopting unmarked dataset generation at %s", cur)
		return s.writeMarker(cur)
	}

	return nil
}

func (s *Store) writeMarker(dir string) error {
	return atomicWriteFile(filepath.Join(dir, markerFile), []byte("active\n"), 0o644)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirSize walks dir and sums regular file sizes.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
