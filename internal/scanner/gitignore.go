package scanner

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRule is one .gitignore line compiled to a root-relative glob.
type ignoreRule struct {
	pattern string
	negate  bool
	dirOnly bool
}

func (r ignoreRule) matches(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	ok, err := doublestar.Match(r.pattern, rel)
	return err == nil && ok
}

// ignored applies the .gitignore files of every directory from the root
// down to rel's parent. The last matching rule wins.
func (s *Scanner) ignored(rel string, isDir bool) bool {
	result := false
	apply := func(dir string) {
		for _, rule := range s.rulesFor(dir) {
			if rule.matches(rel, isDir) {
				result = !rule.negate
			}
		}
	}

	apply("")
	parent := path.Dir(rel)
	if parent == "." {
		return result
	}
	parts := strings.Split(parent, "/")
	for i := range parts {
		apply(strings.Join(parts[:i+1], "/"))
	}
	return result
}

// rulesFor returns the parsed .gitignore of dir, a root-relative path.
func (s *Scanner) rulesFor(dir string) []ignoreRule {
	if rules, ok := s.ignores.Get(dir); ok {
		return rules
	}
	rules := parseGitignore(filepath.Join(s.root, filepath.FromSlash(dir), ".gitignore"), dir)
	s.ignores.Add(dir, rules)
	return rules
}

func parseGitignore(file, base string) []ignoreRule {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var rules []ignoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rule, ok := compileIgnoreLine(sc.Text(), base); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}

// compileIgnoreLine follows gitignore(5): a pattern with a slash other
// than a trailing one is anchored to its .gitignore directory, otherwise
// it matches at any depth below it.
func compileIgnoreLine(line, base string) (ignoreRule, bool) {
	if !strings.HasSuffix(line, `\ `) {
		line = strings.TrimRight(line, " \t")
	}
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	} else if strings.HasPrefix(line, `\!`) || strings.HasPrefix(line, `\#`) {
		line = line[1:]
	}
	line = strings.ReplaceAll(line, `\ `, " ")

	if trimmed, ok := strings.CutSuffix(line, "/"); ok {
		rule.dirOnly = true
		line = trimmed
	}
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignoreRule{}, false
	}

	prefix := ""
	if base != "" {
		prefix = base + "/"
	}
	if anchored {
		rule.pattern = prefix + line
	} else {
		rule.pattern = prefix + "**/" + line
	}

	if !doublestar.ValidatePattern(rule.pattern) {
		return ignoreRule{}, false
	}
	return rule, true
}
