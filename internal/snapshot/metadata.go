package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata records what the active generation is and when the last update
// cycle succeeded. It is read at startup and rewritten atomically after each
// state-changing step, never mutated in place.
type Metadata struct {
	SourceURL       string    `json:"source_url,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
	ChecksumSkipped bool      `json:"checksum_skipped,omitempty"`
	InstalledAt     time.Time `json:"installed_at,omitzero"`
	SizeBytes       int64     `json:"size_bytes,omitempty"`
	LastSuccess     time.Time `json:"last_success,omitzero"`
}

// ReadMetadata loads the metadata record. A missing record returns an empty
// Metadata, which is the first-run state.
func (s *Store) ReadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.root, metadataFile))
	if os.IsNotExist(err) {
		return &Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		// A corrupt record is not fatal: treat it like a first run and
		// let the next successful cycle rewrite it.
		s.log.Warnf("corrupt metadata record, ignoring: %v", err)
		return &Metadata{}, nil
	}
	return &m, nil
}

// WriteMetadata persists the record via write-to-temp and rename.
func (s *Store) WriteMetadata(m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(filepath.Join(s.root, metadataFile), append(data, '\n'), 0o644)
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it onto path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
