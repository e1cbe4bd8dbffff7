package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// StaleTempAge is how old an abandoned pull work dir must be before GC
// removes it.
const StaleTempAge = time.Hour

// EnsureDirs creates all directories with 0o750 permissions.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidFile reports whether path is a non-empty regular file.
func ValidFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// ScanFileStems lists the names, minus suffix, of the files in dir that
// end with suffix. A missing dir yields nothing.
func ScanFileStems(dir, suffix string) []string {
	entries, _ := os.ReadDir(dir)
	var stems []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			stems = append(stems, strings.TrimSuffix(e.Name(), suffix))
		}
	}
	return stems
}

// FilterUnreferenced returns the candidates found neither in refs nor in
// any of the exclude sets.
func FilterUnreferenced(candidates []string, refs map[string]struct{}, exclude ...map[string]struct{}) []string {
	var out []string
next:
	for _, s := range candidates {
		if _, ok := refs[s]; ok {
			continue
		}
		for _, ex := range exclude {
			if _, ok := ex[s]; ok {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

// RemoveMatching removes the entries of dir selected by match and returns
// one error per entry it could not remove.
func RemoveMatching(ctx context.Context, dir string, match func(os.DirEntry) bool) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{fmt.Errorf("read %s: %w", dir, err)}
	}

	logger := log.WithFunc("utils.RemoveMatching")
	var errs []error
	for _, e := range entries {
		if !match(e) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		logger.Infof(ctx, "GC removed: %s", path)
	}
	return errs
}
