// Package pattern compiles the glob syntax shared by every store.
//
// Supported syntax: '*' matches any run of characters, '?' exactly one,
// '[abc]' / '[a-z]' a class, '[^a]' or '[!a]' a negated class, and '\x'
// escapes x. Everything else, including '{', '}' and ',', is literal.
//
// The same source pattern is rendered twice: once for gobwas/glob (client-side
// matching, per rune) and once in Redis SCAN MATCH syntax as a byte-level
// superset that the client narrows with Match.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// ErrSyntax is returned for malformed patterns.
var ErrSyntax = errors.New("pattern: invalid syntax")

// Matcher is a compiled pattern. Safe for concurrent use.
type Matcher struct {
	src    string
	native string
	prefix string
	exact  bool
	g      glob.Glob
}

// Compile parses p.
func Compile(p string) (*Matcher, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrSyntax)
	}

	var (
		gsrc   strings.Builder
		native strings.Builder
		prefix strings.Builder
		meta   bool
	)

	literal := func(c byte) {
		if !meta {
			prefix.WriteByte(c)
		}
		switch c {
		case '*', '?', '[', ']', '{', '}', ',', '\\', '!', '-':
			gsrc.WriteByte('\\')
		}
		gsrc.WriteByte(c)
		switch c {
		case '*', '?', '[', ']', '\\', '^':
			native.WriteByte('\\')
		}
		native.WriteByte(c)
	}

	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '\\':
			if i+1 >= len(p) {
				return nil, fmt.Errorf("%w: trailing escape in %q", ErrSyntax, p)
			}
			i++
			literal(p[i])
		case '*', '?':
			meta = true
			gsrc.WriteByte(c)
			native.WriteByte('*')
		case '[':
			j := i + 1
			negate := false
			if j < len(p) && (p[j] == '^' || p[j] == '!') {
				negate = true
				j++
			}
			end := strings.IndexByte(p[j:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated class in %q", ErrSyntax, p)
			}
			body := p[j : j+end]
			if body == "" || strings.ContainsAny(body, `\[`) {
				return nil, fmt.Errorf("%w: bad class %q in %q", ErrSyntax, body, p)
			}
			meta = true
			gsrc.WriteByte('[')
			if negate {
				gsrc.WriteByte('!')
			}
			gsrc.WriteString(body)
			gsrc.WriteByte(']')
			native.WriteByte('*')
			i = j + end
		default:
			literal(c)
		}
	}

	g, err := glob.Compile(gsrc.String())
	if err != nil {
		return nil, errors.Join(ErrSyntax, err)
	}

	return &Matcher{
		src:    p,
		native: native.String(),
		prefix: prefix.String(),
		exact:  !meta,
		g:      g,
	}, nil
}

// Match reports whether key matches the pattern.
func (m *Matcher) Match(key string) bool { return m.g.Match(key) }

// String returns the source pattern.
func (m *Matcher) String() string { return m.src }

// Native returns the pattern in Redis MATCH syntax. Redis matches '?' and
// classes against single bytes, so both are widened to '*': the native
// pattern selects a superset and callers re-filter with Match.
func (m *Matcher) Native() string { return m.native }

// Prefix returns the literal text before the first wildcard.
func (m *Matcher) Prefix() string { return m.prefix }

// Exact reports whether the pattern has no wildcards at all.
func (m *Matcher) Exact() bool { return m.exact }

// QuoteNative escapes s so Redis MATCH treats it literally.
func QuoteNative(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
