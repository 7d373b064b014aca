// Package discovery locates Cap'n Proto schema files on disk.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

const schemaExt = ".capnp"

// Options controls a schema search.
type Options struct {
	// Recursive descends into subdirectories. When false only the top
	// level of the directory is scanned.
	Recursive bool
	// Exclude holds glob patterns matched against both the file base name
	// and the slash-separated path relative to the search root.
	Exclude []string
}

// FindSchemas returns all schema files under dir, sorted, with hidden
// directories skipped. Paths are returned joined to dir.
func FindSchemas(dir string, opts Options) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: reading %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf("discovery: %s is not a directory", dir)
	}

	var found []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != schemaExt {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if excluded(d.Name(), filepath.ToSlash(rel), opts.Exclude) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: walking %s", dir)
	}

	sort.Strings(found)
	return found, nil
}

func excluded(base, rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
	}
	return false
}
