package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type substitution interface {
	apply(input string) (output string, changed bool)
}

// literal replaces every case-insensitive occurrence of a fixed string.
type literal struct {
	re *regexp.Regexp
	to string
}

func parseLiteral(line string) (substitution, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literal{re: re, to: strings.TrimSpace(to)}, nil
}

func (l literal) apply(input string) (string, bool) {
	out := l.re.ReplaceAllLiteralString(input, l.to)
	return out, out != input
}

// pattern is a sed-style s/re/repl/flags rule.
type pattern struct {
	re     *regexp.Regexp
	repl   string
	global bool
}

var backref = regexp.MustCompile(`\\([0-9])`)

func parseSed(line string) (substitution, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return nil, err
	}

	var prefix strings.Builder
	global := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i', 'm', 's':
			if !strings.ContainsRune(prefix.String(), flag) {
				prefix.WriteRune(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	expr := fields[0]
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}

	// sed writes group references as \1; regexp expects ${1}.
	repl := backref.ReplaceAllString(fields[1], `$${$1}`)
	return pattern{re: re, repl: repl, global: global}, nil
}

func (p pattern) apply(input string) (string, bool) {
	if p.global {
		out := p.re.ReplaceAllString(input, p.repl)
		return out, out != input
	}
	m := p.re.FindStringSubmatchIndex(input)
	if m == nil {
		return input, false
	}
	expanded := p.re.ExpandString(nil, p.repl, input, m)
	out := input[:m[0]] + string(expanded) + input[m[1]:]
	return out, out != input
}

// splitDelimited reads n delim-terminated fields. A backslash before delim escapes it;
// other escapes are kept for the regexp compiler.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if s[i+1] == delim {
				cur.WriteByte(delim)
			} else {
				cur.WriteByte(c)
				cur.WriteByte(s[i+1])
			}
			i++
			continue
		}
		if c == delim {
			fields = append(fields, cur.String())
			cur.Reset()
			if len(fields) == n {
				return fields, s[i+1:], nil
			}
			continue
		}
		cur.WriteByte(c)
	}
	return nil, "", errors.New("unterminated expression")
}

func isSedExpression(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	d := line[1]
	return !(d >= 'a' && d <= 'z' || d >= 'A' && d <= 'Z' || d >= '0' && d <= '9' || d == ' ' || d == '\t' || d == '\\')
}
