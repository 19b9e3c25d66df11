// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package filter compiles repository name selectors: letter-range filters and
// glob/regex ignore patterns, optionally loaded from a JSON config file.
package filter

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// Predicate reports whether a repository name matches a compiled selector.
type Predicate func(repository string) bool

// SyntaxError reports an invalid letter-filter token.
type SyntaxError struct {
	Token  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid filter token %q: %s", e.Token, e.Reason)
}

// ConfigLoadError reports a problem loading an ignore-pattern config file.
type ConfigLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("ignore config %q: %s", e.Path, e.Reason)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// ParseLetterFilter compiles a comma-separated list of single letters or a-c
// ranges into a predicate over the first alphabetic character of a repository
// name. Matching is case-insensitive. An empty expression matches everything.
func ParseLetterFilter(expression string) (Predicate, error) {
	if strings.TrimSpace(expression) == "" {
		return func(string) bool { return true }, nil
	}

	type letterRange struct {
		start, end rune
	}
	var ranges []letterRange
	var singles []rune

	for _, token := range strings.Split(expression, ",") {
		candidate := strings.ToLower(strings.TrimSpace(token))
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, "-") {
			parts := strings.SplitN(candidate, "-", 2)
			start := strings.TrimSpace(parts[0])
			end := strings.TrimSpace(parts[1])
			if !isSingleLetter(start) || !isSingleLetter(end) {
				return nil, &SyntaxError{Token: token, Reason: "use the form a-c"}
			}
			if start > end {
				return nil, &SyntaxError{Token: token, Reason: "range start must precede end"}
			}
			ranges = append(ranges, letterRange{start: rune(start[0]), end: rune(end[0])})
		} else {
			if !isSingleLetter(candidate) {
				return nil, &SyntaxError{Token: token, Reason: "expected a single letter"}
			}
			singles = append(singles, rune(candidate[0]))
		}
	}

	return func(repository string) bool {
		first, ok := firstAlpha(repository)
		if !ok {
			return false
		}
		for _, s := range singles {
			if first == s {
				return true
			}
		}
		for _, r := range ranges {
			if first >= r.start && first <= r.end {
				return true
			}
		}
		return false
	}, nil
}

func isSingleLetter(s string) bool {
	return len(s) == 1 && unicode.IsLetter(rune(s[0]))
}

// firstAlpha returns the first alphabetic character of s, lowercased.
func firstAlpha(s string) (rune, bool) {
	for _, c := range strings.ToLower(s) {
		if unicode.IsLetter(c) {
			return c, true
		}
	}
	return 0, false
}

// NormalizeIgnorePatterns splits each entry on commas, trims whitespace, and
// drops empty results.
func NormalizeIgnorePatterns(raw []string) []string {
	var patterns []string
	for _, entry := range raw {
		for _, token := range strings.Split(entry, ",") {
			candidate := strings.TrimSpace(token)
			if candidate != "" {
				patterns = append(patterns, candidate)
			}
		}
	}
	return patterns
}

// CompileIgnoreFilter compiles ignore patterns into a predicate. Patterns
// prefixed "re:" are anchored regular expressions; everything else is a
// case-sensitive glob. A repository is ignored if any rule matches.
// Malformed regex patterns are skipped.
func CompileIgnoreFilter(patterns []string) Predicate {
	if len(patterns) == 0 {
		return func(string) bool { return false }
	}

	var regexes []*regexp.Regexp
	var globs []*regexp.Regexp
	for _, pattern := range patterns {
		if after, ok := strings.CutPrefix(pattern, "re:"); ok {
			re, err := regexp.Compile("^(?:" + after + ")")
			if err != nil {
				continue
			}
			regexes = append(regexes, re)
		} else {
			re, err := regexp.Compile(globToRegexp(pattern))
			if err != nil {
				continue
			}
			globs = append(globs, re)
		}
	}

	return func(repository string) bool {
		for _, re := range regexes {
			if re.MatchString(repository) {
				return true
			}
		}
		for _, re := range globs {
			if re.MatchString(repository) {
				return true
			}
		}
		return false
	}
}

// globToRegexp translates a glob pattern into an anchored regular expression.
// Unlike filepath.Match, wildcards match across path separators, so "team/*"
// and "legacy-*" behave the way registry operators expect.
func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			// Copy a character class through verbatim, honoring a leading
			// negation and an escaped first ']'.
			end := i + 1
			if end < len(pattern) && (pattern[end] == '!' || pattern[end] == '^') {
				end++
			}
			if end < len(pattern) && pattern[end] == ']' {
				end++
			}
			for end < len(pattern) && pattern[end] != ']' {
				end++
			}
			if end >= len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := pattern[i : end+1]
			class = strings.Replace(class, "[!", "[^", 1)
			b.WriteString(class)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// ignoreConfig is the object form of the ignore config file.
type ignoreConfig struct {
	Patterns json.RawMessage `json:"patterns"`
}

// LoadIgnorePatternsFromFile reads ignore patterns from a JSON file. The file
// must contain either a flat list of pattern strings or an object with a
// "patterns" list. The result is normalized.
func LoadIgnorePatternsFromFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Reason: "file not found or unreadable", Err: err}
	}

	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		return NormalizeIgnorePatterns(asList), nil
	}

	var asObject ignoreConfig
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, &ConfigLoadError{Path: path, Reason: "invalid JSON", Err: err}
	}
	// RawMessage keeps a JSON null literal, so check for it alongside a
	// missing key.
	if asObject.Patterns == nil || string(asObject.Patterns) == "null" {
		return nil, &ConfigLoadError{Path: path, Reason: "object payload must provide a 'patterns' list"}
	}
	if err := json.Unmarshal(asObject.Patterns, &asList); err != nil {
		return nil, &ConfigLoadError{Path: path, Reason: "'patterns' must be a list of strings", Err: err}
	}
	return NormalizeIgnorePatterns(asList), nil
}
