// Package value provides the canonical serialization and cache-key hashing
// used by the Instrumented Node Wrapper's cache check (spec §4.E step 1,
// design notes §9: "canonical serialization (sorted keys) is the MD5 input").
package value

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// Canonicalize returns a JSON-marshalable copy of v with every map's keys
// implicitly sorted (encoding/json already sorts map[string]any keys on
// Marshal) and nested structures normalized to map[string]any/[]any so two
// structurally-equal values always serialize identically.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Canonicalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
		}
		return out
	default:
		return t
	}
}

// Hash returns the hex-encoded MD5 of v's canonical JSON serialization.
// This is the node-params cache key of spec §4.E step 1 and the
// node_hashes entries of the Checkpoint (spec §3).
func Hash(v any) (string, error) {
	b, err := json.Marshal(Canonicalize(v))
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// MustHash is Hash but panics on a marshal error — only safe for values
// already known to be JSON-serializable (e.g. freshly resolved template
// output), matching the teacher's frequent convention of a Must variant
// for call sites where an error is a programmer mistake, not an input fault.
func MustHash(v any) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
