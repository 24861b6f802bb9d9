package ffmpeg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clipper/internal/params"
	"clipper/internal/textutil"
	"clipper/internal/timerange"
)

// fallbackStem names clips whose source name sanitises to nothing.
const fallbackStem = "clip"

// maxDisambiguator bounds the " (N)" search.
const maxDisambiguator = 9999

// OutputName derives the clip file name from the source path, trim range and
// parameters: "<stem>[-<start>-<end>]-<WxH|source>-<codec>.<ext>".
func OutputName(sourcePath string, trim timerange.TrimRange, p params.EncodingParameters) string {
	base := filepath.Base(sourcePath)
	stem := textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = fallbackStem
	}

	parts := []string{stem}
	if trim.Enabled {
		parts = append(parts, timerange.Token(trim.Start), timerange.Token(trim.End))
	}
	parts = append(parts, p.Resolution.String(), string(p.Codec))
	if p.Speed != 1 {
		parts = append(parts, formatFloat(p.Speed)+"x")
	}
	return strings.Join(parts, "-") + p.Container.Extension()
}

// Disambiguate returns name with " (N)" inserted before the extension, or name
// itself for n < 2.
func Disambiguate(name string, n int) string {
	if n < 2 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}

// PathReserver hands out output paths that neither exist on disk nor are held
// by another in-flight job. All methods are goroutine-safe.
type PathReserver struct {
	mu      sync.Mutex
	claimed map[string]struct{}
	exists  func(string) bool
}

// NewPathReserver returns a reserver that checks the filesystem with Lstat.
func NewPathReserver() *PathReserver {
	return &PathReserver{claimed: make(map[string]struct{}), exists: pathExists}
}

// Reserve claims the first free variant of dir/name.
func (r *PathReserver) Reserve(dir, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for n := 1; n <= maxDisambiguator; n++ {
		candidate := filepath.Join(dir, Disambiguate(name, n))
		if _, held := r.claimed[candidate]; held {
			continue
		}
		if r.exists(candidate) {
			continue
		}
		r.claimed[candidate] = struct{}{}
		return candidate, nil
	}
	return "", buildErr("no free output name for %s in %s", name, dir)
}

// Release returns a path to the pool once its job is terminal.
func (r *PathReserver) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, path)
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
