package tmpl

import (
	"fmt"
	"strings"
)

// part is one piece of a scanned template string: either literal text or a
// ${path} reference.
type part struct {
	isRef bool
	lit   string
	path  string
}

// scan splits s into literal and reference parts, honoring the $$ escape
// (spec §4.B: "a $ followed by $ is a single literal $ and disables
// template matching at that position").
func scan(s string) ([]part, error) {
	var parts []part
	i, n := 0, len(s)

	flushLit := func(lit string) {
		if lit == "" {
			return
		}
		if len(parts) > 0 && !parts[len(parts)-1].isRef {
			parts[len(parts)-1].lit += lit
			return
		}
		parts = append(parts, part{lit: lit})
	}

	for i < n {
		if s[i] != '$' {
			j := i
			for j < n && s[j] != '$' {
				j++
			}
			flushLit(s[i:j])
			i = j
			continue
		}
		// s[i] == '$'
		if i+1 < n && s[i+1] == '$' {
			flushLit("$")
			i += 2
			continue
		}
		if i+1 < n && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("tmpl: unterminated ${...} in %q", s)
			}
			path := s[i+2 : i+2+end]
			parts = append(parts, part{isRef: true, path: path})
			i = i + 2 + end + 1
			continue
		}
		// lone '$' not followed by '{' or another '$': literal.
		flushLit("$")
		i++
	}
	return parts, nil
}

// isSimple reports whether parts is exactly one reference with no
// surrounding literal text — the "simple template" of spec §4.B that
// preserves the resolved value's original type.
func isSimple(parts []part) (string, bool) {
	if len(parts) == 1 && parts[0].isRef {
		return parts[0].path, true
	}
	return "", false
}
