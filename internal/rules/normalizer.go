package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNotConverged is returned when substitutions keep changing the phrase past the iteration limit.
var ErrNotConverged = errors.New("phrase rules did not converge")

const defaultIterationLimit = 30

// Normalizer cleans a reference phrase before it is sent for pronunciation comparison.
type Normalizer struct {
	rules []Rule
	limit int
}

// Load reads rules from path. An empty path or missing file yields a normalizer
// that only folds typographic punctuation and whitespace.
func Load(path string, limit int) (*Normalizer, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil, limit), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil, limit), nil
		}
		return nil, fmt.Errorf("open phrase rules %q: %w", path, err)
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("phrase rules %q: %w", path, err)
	}
	return New(rules, limit), nil
}

// New builds a normalizer from already parsed rules.
func New(rules []Rule, limit int) *Normalizer {
	if limit <= 0 {
		limit = defaultIterationLimit
	}
	return &Normalizer{rules: append([]Rule(nil), rules...), limit: limit}
}

// Normalize applies every rule until the phrase stops changing, then collapses whitespace.
func (n *Normalizer) Normalize(phrase string) (string, error) {
	out := typography.Replace(phrase)

	stable := len(n.rules) == 0
	var changing []string
	for pass := 0; pass <= n.limit && !stable; pass++ {
		stable = true
		changing = changing[:0]
		for _, rule := range n.rules {
			if next, changed := rule.sub.apply(out); changed {
				out = next
				stable = false
				changing = append(changing, strconv.Itoa(rule.Line))
			}
		}
	}
	if !stable {
		return "", fmt.Errorf("%w after %d passes (rules on lines %s keep changing it)",
			ErrNotConverged, n.limit, strings.Join(changing, ", "))
	}

	return strings.Join(strings.Fields(out), " "), nil
}

// Len reports how many rules are loaded.
func (n *Normalizer) Len() int {
	return len(n.rules)
}

var typography = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"\u2013", "-",
	"\u2014", "-",
	"\u00a0", " ",
)

// Rule is one parsed line of a rules file.
type Rule struct {
	Line int
	sub  substitution
}

// Parse reads one rule per line. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sub, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, Rule{Line: lineNo, sub: sub})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return rules, nil
}

func parseLine(line string) (substitution, error) {
	if isSedExpression(line) {
		return parseSed(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteral(line)
	}
	return nil, errors.New("unsupported rule format")
}
