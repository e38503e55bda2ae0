package index

import (
	"regexp"
	"strings"
)

// PathFilter implements spec.md §4.6's post-query path narrowing: a
// document matches when it is a descendant of at least one requested path
// (if any were given) and glob-matches at least one requested filter (if
// any were given).
type PathFilter struct{}

// NewPathFilter returns a PathFilter. It holds no state; every method is a
// pure function of its arguments.
func NewPathFilter() *PathFilter { return &PathFilter{} }

// Matches reports whether source satisfies paths and pathFilters
// (spec.md §4.6). Empty/nil paths or pathFilters are treated as "no
// constraint" for that dimension.
func (f *PathFilter) Matches(source string, paths []string, pathFilters []string) bool {
	if len(paths) > 0 && !anyIsAncestor(paths, source) {
		return false
	}
	if len(pathFilters) > 0 && !anyGlobMatches(pathFilters, source) {
		return false
	}
	return true
}

func anyIsAncestor(paths []string, source string) bool {
	for _, p := range paths {
		if isDescendant(p, source) {
			return true
		}
	}
	return false
}

// isDescendant reports whether source is ancestor-equal-or-below ancestor,
// using path-segment comparison so "/a/b" doesn't wrongly match "/a/bc".
func isDescendant(ancestor, source string) bool {
	ancestor = strings.TrimRight(ancestor, "/")
	if source == ancestor {
		return true
	}
	return strings.HasPrefix(source, ancestor+"/")
}

func anyGlobMatches(filters []string, source string) bool {
	for _, filt := range filters {
		if globMatch(filt, source) {
			return true
		}
	}
	return false
}

// globMatch implements spec.md §4.6's shell glob semantics (`*`, `**`,
// `?`, character classes), plus the "bare-extension filter" rule: a
// filter with no `/` is interpreted as "any path ending with this
// pattern" (so `*.md` matches `docs/readme.md`, not just a top-level
// file). Adapted from gitignore.Matcher's pattern-to-regex translation.
func globMatch(pattern, path string) bool {
	anchored := strings.Contains(pattern, "/")
	re := globToRegex(pattern)
	if !anchored {
		re = "(?:.*/)?" + re
	}
	matched, err := regexp.MatchString("^"+re+"$", path)
	if err != nil {
		return false
	}
	return matched
}

func globToRegex(pattern string) string {
	var out strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				out.WriteString(".*")
				i += 2
				continue
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '+', '^', '$', '(', ')', '{', '}', '|', '\\':
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			out.WriteString(string(c))
			i++
		}
	}
	return out.String()
}
