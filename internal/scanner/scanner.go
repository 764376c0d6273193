// Package scanner walks a project and lists the files to index. It applies
// include and exclude globs, nested .gitignore files and a fixed list of
// sensitive file names that are never indexed.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// gitignoreCacheSize bounds the parsed .gitignore files kept in memory.
const gitignoreCacheSize = 1000

// Options configures a Scanner.
type Options struct {
	// Root is the project directory.
	Root string

	// Include limits results to paths matching one of these globs. Empty
	// includes everything.
	Include []string

	// Exclude drops paths matching any of these globs.
	Exclude []string

	// RespectGitignore applies .gitignore files found in the tree.
	RespectGitignore bool

	// SkipDirs are absolute directories never descended into, such as the
	// index data directory.
	SkipDirs []string
}

// Scanner decides which project paths are indexed.
type Scanner struct {
	root     string
	include  []string
	exclude  []string
	skipDirs map[string]struct{}

	gitignore bool
	ignores   *lru.Cache[string, []ignoreRule]
}

// New validates opts and returns a Scanner.
func New(opts Options) (*Scanner, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath, "resolve scan root", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "scan root does not exist", err).WithDetail("root", root)
	}
	if !info.IsDir() {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath, "scan root is not a directory", nil).WithDetail("root", root)
	}

	for _, pattern := range append(append([]string(nil), opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, cerrors.ConfigError("invalid glob pattern", nil).WithDetail("pattern", pattern)
		}
	}

	cache, err := lru.New[string, []ignoreRule](gitignoreCacheSize)
	if err != nil {
		return nil, cerrors.InternalError("create gitignore cache", err)
	}

	s := &Scanner{
		root:      root,
		include:   opts.Include,
		exclude:   append(append([]string(nil), sensitivePatterns...), opts.Exclude...),
		skipDirs:  make(map[string]struct{}, len(opts.SkipDirs)),
		gitignore: opts.RespectGitignore,
		ignores:   cache,
	}
	for _, dir := range opts.SkipDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			s.skipDirs[abs] = struct{}{}
		}
	}
	return s, nil
}

// Root returns the absolute project directory.
func (s *Scanner) Root() string { return s.root }

// Scan walks the project and returns every indexable file.
func (s *Scanner) Scan(ctx context.Context) ([]indexer.File, error) {
	var files []indexer.File
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			slog.Debug("scan_entry_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == s.root {
			return nil
		}

		rel, ok := s.Rel(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if s.skipDir(path, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		// Symlinks and special files are not followed.
		if !d.Type().IsRegular() {
			return nil
		}
		if s.Excluded(rel, false) {
			return nil
		}

		files = append(files, indexer.NewFile(rel))
		return nil
	})
	if err != nil {
		return files, err
	}

	slog.Debug("scan_complete",
		slog.String("root", s.root),
		slog.Int("files", len(files)))
	return files, nil
}

// Rel converts an absolute path under the root to a slash-separated
// relative path.
func (s *Scanner) Rel(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Excluded reports whether rel, a slash-separated path relative to the
// root, is left out of the index. Ancestors are checked as well, so paths
// inside an excluded directory are excluded.
func (s *Scanner) Excluded(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		if s.skipDir(filepath.Join(s.root, filepath.FromSlash(dir)), dir) {
			return true
		}
	}
	if isDir {
		return s.skipDir(filepath.Join(s.root, filepath.FromSlash(rel)), rel)
	}

	if matchAny(s.exclude, rel) {
		return true
	}
	if len(s.include) > 0 && !matchAny(s.include, rel) {
		return true
	}
	return s.gitignore && s.ignored(rel, false)
}

// skipDir reports whether the walk should not descend into rel.
func (s *Scanner) skipDir(abs, rel string) bool {
	if _, ok := s.skipDirs[abs]; ok {
		return true
	}
	if filepath.Base(rel) == ".git" {
		return true
	}
	for _, pattern := range s.exclude {
		if dirPatternMatch(pattern, rel) {
			return true
		}
	}
	return s.gitignore && s.ignored(rel, true)
}

// InvalidateGitignoreCache drops parsed .gitignore files so edits are
// picked up.
func (s *Scanner) InvalidateGitignoreCache() {
	s.ignores.Purge()
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// dirPatternMatch matches a directory against a pattern written for the
// files inside it ("**/node_modules/**" excludes the node_modules dir).
func dirPatternMatch(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if trimmed, found := strings.CutSuffix(pattern, "/**"); found {
		ok, _ := doublestar.Match(trimmed, rel)
		return ok
	}
	return false
}

// sensitivePatterns are never indexed.
var sensitivePatterns = []string{
	"**/.env",
	"**/.env.*",
	"**/*.pem",
	"**/*.key",
	"**/*.p12",
	"**/*.pfx",
	"**/.netrc",
	"**/.npmrc",
	"**/.pypirc",
	"**/id_rsa",
	"**/id_dsa",
	"**/id_ecdsa",
	"**/id_ed25519",
	"**/.ssh/**",
	"**/.aws/**",
}
