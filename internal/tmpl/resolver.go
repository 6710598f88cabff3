package tmpl

import (
	"encoding/json"

	"github.com/smilemakc/pflow/internal/ir"
)

// Resolve evaluates templates embedded anywhere inside v (recursing through
// maps and slices) against ctx, per the rules of spec §4.B. It returns the
// resolved value, whether the run should be considered degraded (at least
// one permissive-mode sentinel was substituted), and an error (only
// possible in strict mode, or on a malformed ${...}).
func Resolve(v any, ctx *Context, mode ir.TemplateMode) (any, bool, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, ctx, mode)
	case map[string]any:
		out := make(map[string]any, len(t))
		degraded := false
		for k, val := range t {
			r, d, err := Resolve(val, ctx, mode)
			if err != nil {
				return nil, false, err
			}
			out[k] = r
			degraded = degraded || d
		}
		return out, degraded, nil
	case []any:
		out := make([]any, len(t))
		degraded := false
		for i, val := range t {
			r, d, err := Resolve(val, ctx, mode)
			if err != nil {
				return nil, false, err
			}
			out[i] = r
			degraded = degraded || d
		}
		return out, degraded, nil
	default:
		// null, bool, number and any other non-templatable type: as-is.
		return v, false, nil
	}
}

func resolveString(s string, ctx *Context, mode ir.TemplateMode) (any, bool, error) {
	parts, err := scan(s)
	if err != nil {
		return nil, false, err
	}

	if path, simple := isSimple(parts); simple {
		val, found, rerr := ctx.Resolve(path)
		if rerr != nil {
			return nil, false, rerr
		}
		if !found {
			if mode == ir.ModeStrict {
				return nil, false, &UnresolvedError{Path: path}
			}
			// P4/§4.B: permissive simple reference sentinel is null.
			return nil, true, nil
		}
		return val, false, nil
	}

	// No references at all: reassemble literal text (handles bare "$$").
	if len(parts) == 0 {
		return "", false, nil
	}
	hasRef := false
	for _, p := range parts {
		if p.isRef {
			hasRef = true
			break
		}
	}
	if !hasRef {
		var sb []byte
		for _, p := range parts {
			sb = append(sb, p.lit...)
		}
		return string(sb), false, nil
	}

	// Complex template: always resolves to a string.
	var sb []byte
	degraded := false
	for _, p := range parts {
		if !p.isRef {
			sb = append(sb, p.lit...)
			continue
		}
		val, found, rerr := ctx.Resolve(p.path)
		if rerr != nil {
			return nil, false, rerr
		}
		if !found {
			if mode == ir.ModeStrict {
				return nil, false, &UnresolvedError{Path: p.path}
			}
			sb = append(sb, sentinelString(p.path)...)
			degraded = true
			continue
		}
		sb = append(sb, stringify(val)...)
	}
	return string(sb), degraded, nil
}

// stringify renders a resolved reference value for embedding in a complex
// template: strings pass through untouched, everything else is JSON-encoded
// (spec §4.B: "JSON-stringified if not already a string").
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// RootOf returns the head variable name of a reference path (the text inside
// ${...}, e.g. "node.field[0]" gives "node"); a path that does not parse is
// returned unchanged. Used by the validator to find the declared root of
// each reference without fully resolving it.
func RootOf(path string) string {
	return Head(path)
}

// References extracts every ${path} reference embedded in v (recursing
// through maps/slices), used by the validator's template layer (spec
// §4.C layer 3).
func References(v any) []string {
	var out []string
	collectReferences(v, &out)
	return out
}

func collectReferences(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		parts, err := scan(t)
		if err != nil {
			return
		}
		for _, p := range parts {
			if p.isRef {
				*out = append(*out, p.path)
			}
		}
	case map[string]any:
		for _, val := range t {
			collectReferences(val, out)
		}
	case []any:
		for _, val := range t {
			collectReferences(val, out)
		}
	}
}
