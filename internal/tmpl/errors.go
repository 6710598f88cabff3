package tmpl

import "fmt"

// UnresolvedError is raised in strict mode when a ${path} reference cannot
// be resolved against the context (spec §4.B, §4.K category template_error).
type UnresolvedError struct {
	Path string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("tmpl: unresolved reference ${%s}", e.Path)
}

// sentinelString is what an unresolved complex-template reference prints as
// in permissive mode (spec §4.B).
func sentinelString(path string) string {
	return fmt.Sprintf("[unresolved:${%s}]", path)
}
