package fetch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExtractionRatio estimates how much larger the extracted dataset is than
// its compressed archive. Measured across published dataset archives.
const ExtractionRatio = 1.63

// InsufficientSpaceError means the destination volume lacks headroom for the
// transfer plus decompression.
type InsufficientSpaceError struct {
	Path string
	Need uint64
	Have uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space on %s: need %.2f GB, have %.2f GB",
		e.Path, float64(e.Need)/(1<<30), float64(e.Have)/(1<<30))
}

// Retry marks the error as permanent for the retry machinery.
func (e *InsufficientSpaceError) Retry() bool { return false }

// AvailableSpace returns the free bytes on the volume holding path.
func AvailableSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// SpaceNeeded returns the headroom required for an update given the
// compressed download size. A parallel update keeps the serving generation
// on disk while the new one is extracted, so it needs room for the archive
// plus two extracted generations; a sequential update needs the archive plus
// one.
func SpaceNeeded(downloadSize int64, parallel bool) uint64 {
	compressed := uint64(downloadSize)
	extracted := uint64(float64(downloadSize) * ExtractionRatio)
	if parallel {
		return compressed + 2*extracted
	}
	return compressed + extracted
}

// EnsureSpace fails fast with an InsufficientSpaceError when dir's volume
// cannot hold an update of the given compressed size. An unknown download
// size or an unreadable volume skips the check with a warning, matching the
// behavior of proceeding when the mirror does not report a length.
func (f *Fetcher) EnsureSpace(dir string, downloadSize int64, parallel bool) error {
	if downloadSize <= 0 {
		f.log.Warnf("could not determine download size, proceeding without space check")
		return nil
	}

	have, err := AvailableSpace(dir)
	if err != nil {
		f.log.Warnf("could not determine free space on %s: %v", dir, err)
		return nil
	}

	need := SpaceNeeded(downloadSize, parallel)
	f.log.Infof("space check for %s: need %.2f GB, have %.2f GB",
		dir, float64(need)/(1<<30), float64(have)/(1<<30))

	if have < need {
		return &InsufficientSpaceError{Path: dir, Need: need, Have: have}
	}
	return nil
}
