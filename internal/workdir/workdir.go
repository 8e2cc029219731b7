package workdir

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"overdub/internal/logging"
	"overdub/internal/services"
)

// freeSpaceFloor is the free-space ratio below which a warning is logged.
const freeSpaceFloor = 0.05

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Dir is an opened per-run working directory holding raw per-cue clips and
// the clip cache.
type Dir struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	statfs statfsFunc
}

// Resolve determines the run directory: the explicit path when given,
// otherwise a subdirectory of workRoot keyed by the MD5 of the subtitle
// file's bytes, so a rerun of the same input resumes in the same place.
func Resolve(workRoot, explicit, subtitlePath string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	data, err := os.ReadFile(subtitlePath)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "workdir", "hash subtitle file", subtitlePath, err)
	}
	sum := md5.Sum(data)
	return filepath.Join(workRoot, hex.EncodeToString(sum[:])), nil
}

// Open creates the run directory layout and acquires its lock so two
// processes cannot share a working directory.
func Open(path string, logger *slog.Logger) (*Dir, error) {
	dir := &Dir{
		path:   path,
		logger: logging.NewComponentLogger(logger, "workdir"),
		statfs: realStatfs,
	}
	if err := os.MkdirAll(dir.CachePath(), 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "workdir", "create layout", path, err)
	}

	dir.lock = flock.New(filepath.Join(path, ".lock"))
	locked, err := dir.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "workdir", "acquire lock", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrIO, "workdir", "acquire lock",
			fmt.Sprintf("%s is in use by another run", path), nil)
	}

	dir.checkFreeSpace()
	return dir, nil
}

// Path returns the run directory root.
func (d *Dir) Path() string {
	return d.path
}

// RawClipPath returns the per-cue raw clip location.
func (d *Dir) RawClipPath(index int) string {
	return filepath.Join(d.path, fmt.Sprintf("raw_%d.mp3", index))
}

// HasRawClip reports whether a non-empty raw clip exists for the cue,
// which is what resume mode treats as "already generated".
func (d *Dir) HasRawClip(index int) bool {
	info, err := os.Stat(d.RawClipPath(index))
	return err == nil && info.Size() > 0
}

// CachePath returns the cache subdirectory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, "cache")
}

// Release drops the run lock without removing anything.
func (d *Dir) Release() {
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}

// Cleanup releases the lock and removes the directory tree. With keep set,
// the tree is left in place for inspection and resume.
func (d *Dir) Cleanup(keep bool) error {
	d.Release()
	if keep {
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		return services.Wrap(services.ErrIO, "workdir", "remove", d.path, err)
	}
	return nil
}

func (d *Dir) checkFreeSpace() {
	total, free, err := d.statfs(d.path)
	if err != nil || total == 0 {
		return
	}
	ratio := float64(free) / float64(total)
	if ratio < freeSpaceFloor {
		d.logger.Warn("low free space under working directory",
			logging.String("free", humanize.IBytes(free)),
			logging.Float64("free_ratio", ratio))
	}
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}
