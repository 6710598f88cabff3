package tmpl

// Context is the three-tier lookup context for ${...} resolution (spec
// §4.B): explicit extracted parameters take precedence over the shared
// store, which takes precedence over declared workflow inputs with their
// defaults.
type Context struct {
	Params map[string]any
	Shared map[string]any
	Inputs map[string]any
}

// NewContext builds a Context, tolerating nil maps.
func NewContext(params, shared, inputs map[string]any) *Context {
	if params == nil {
		params = map[string]any{}
	}
	if shared == nil {
		shared = map[string]any{}
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &Context{Params: params, Shared: shared, Inputs: inputs}
}

// Resolve looks up a dotted/indexed path against the three sources in
// precedence order, returning (value, found, error). error is non-nil only
// for a malformed path.
func (c *Context) Resolve(path string) (any, bool, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false, err
	}
	head := segs[0]
	if head.IsIndex {
		return nil, false, nil
	}

	var root any
	var found bool
	if v, ok := c.Params[head.Key]; ok {
		root, found = v, true
	} else if v, ok := c.Shared[head.Key]; ok {
		root, found = v, true
	} else if v, ok := c.Inputs[head.Key]; ok {
		root, found = v, true
	}
	if !found {
		return nil, false, nil
	}
	if len(segs) == 1 {
		return root, true, nil
	}
	v, ok := Walk(root, segs[1:])
	return v, ok, nil
}

// HasRoot reports whether name resolves as a root variable in any of the
// three sources, without walking any tail. Used by the validator's
// template layer to check a reference's declared-input-or-node-output root.
func (c *Context) HasRoot(name string) bool {
	if _, ok := c.Params[name]; ok {
		return true
	}
	if _, ok := c.Shared[name]; ok {
		return true
	}
	if _, ok := c.Inputs[name]; ok {
		return true
	}
	return false
}
