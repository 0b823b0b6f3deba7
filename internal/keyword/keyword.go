// Package keyword implements the rule set that decides whether a
// listing title counts as one of the operator's own ads.
//
// Each rule line is one AND-group: all of its tokens must appear in
// the title. Lines are OR'd, any single matching line is enough.
// Matching is case-insensitive and substring-based, mirroring how the
// marketplace itself tokenizes titles rather loosely.
package keyword

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoRules is returned when the compiled rule set is empty. An empty
// set would silently match nothing for every city, so a run fails fast
// instead.
var ErrNoRules = errors.New("keyword rule set is empty")

// Rule is one AND-group of required lowercased tokens.
type Rule struct {
	Tokens []string
}

// RuleSet is the ordered sequence of rules, immutable once compiled.
type RuleSet struct {
	Rules []Rule
}

// Compile parses rule lines into a RuleSet. Blank lines and lines
// starting with # are dropped before parsing. Any line that survives
// that filter yields at least one token, Fields splits on the same
// whitespace TrimSpace strips.
func Compile(lines []string) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rs.Rules = append(rs.Rules, Rule{Tokens: strings.Fields(strings.ToLower(line))})
	}
	if len(rs.Rules) == 0 {
		return nil, ErrNoRules
	}
	return rs, nil
}

// CompileFile reads one rule per line from the given file.
func CompileFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyword file: %w", err)
	}
	defer f.Close()
	return compileReader(f)
}

func compileReader(r io.Reader) (*RuleSet, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keyword file: %w", err)
	}
	return Compile(lines)
}

// Match reports whether the title satisfies at least one rule. The
// title is lowercased once, tokens are matched as substrings.
func (rs *RuleSet) Match(title string) bool {
	lower := strings.ToLower(title)
	for _, rule := range rs.Rules {
		if matchAll(lower, rule.Tokens) {
			return true
		}
	}
	return false
}

func matchAll(lower string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(lower, tok) {
			return false
		}
	}
	return true
}
