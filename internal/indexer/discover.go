package indexer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// skippedDirs are never descended into by the fallback walk
var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
}

// Discover lists the files under root whose names end with one of exts.
// Paths are relative to root and slash-separated. Inside a git work tree the
// listing comes from git ls-files in git's order; otherwise the directory is
// walked honoring nested .gitignore files and the result is sorted.
func Discover(ctx context.Context, root string, exts []string) ([]string, error) {
	paths, err := gitLsFiles(ctx, root)
	if err != nil {
		paths, err = walkFiles(root)
		if err != nil {
			return nil, err
		}
	}

	return filterExtensions(paths, exts), nil
}

// gitLsFiles returns the files tracked by git under root
func gitLsFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, raw := range bytes.Split(out, []byte{0}) {
		if len(raw) == 0 {
			continue
		}
		paths = append(paths, string(raw))
	}
	return paths, nil
}

// walkFiles walks root and returns every file not excluded by a .gitignore
func walkFiles(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ignores := newIgnoreCache(absRoot)

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != absRoot && (skippedDirs[d.Name()] || ignores.shouldIgnore(path)) {
				return filepath.SkipDir
			}
			ignores.load(path)
			return nil
		}

		if !d.Type().IsRegular() || ignores.shouldIgnore(path) {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// filterExtensions keeps paths ending in one of exts, preserving order
func filterExtensions(paths []string, exts []string) []string {
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		for _, ext := range exts {
			if strings.HasSuffix(p, ext) {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered
}

// ignoreCache holds the compiled .gitignore of every visited directory that
// has one
type ignoreCache struct {
	root  string
	cache map[string]*ignore.GitIgnore
}

func newIgnoreCache(root string) *ignoreCache {
	return &ignoreCache{
		root:  root,
		cache: make(map[string]*ignore.GitIgnore),
	}
}

func (c *ignoreCache) load(dir string) {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if gi, err := ignore.CompileIgnoreFile(path); err == nil {
		c.cache[dir] = gi
	}
}

// shouldIgnore checks absPath against every .gitignore from its parent up
// to the root
func (c *ignoreCache) shouldIgnore(absPath string) bool {
	if len(c.cache) == 0 {
		return false
	}

	dir := filepath.Dir(absPath)
	for {
		if gi, ok := c.cache[dir]; ok {
			rel, _ := filepath.Rel(dir, absPath)
			if gi.MatchesPath(filepath.ToSlash(rel)) {
				return true
			}
		}

		if dir == c.root {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
