// Package validate implements the IR Validator (spec §4.C): five
// independent layers run in order, each continuing even after a previous
// layer reported errors, so one call yields a complete report.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/smilemakc/pflow/internal/dag"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/tmpl"
)

var schemaLoader = gojsonschema.NewStringLoader(workflowSchema)

var templateRef = regexp.MustCompile(`\$\{[^}]*\}`)

// Validate runs all five layers against wf and returns an ordered list of
// error strings, each prefixed with a path (spec §4.C). wf is never
// mutated. reg may be nil (skips the node-type layer and the output-spec
// sub-check of the template layer). skipNodeTypes additionally skips the
// node-type layer even when reg is non-nil.
func Validate(wf *ir.Workflow, params map[string]any, reg *registry.Registry, skipNodeTypes bool) []string {
	var errs []string

	errs = append(errs, schemaLayer(wf, params)...)

	order, cycleErr := dag.Order(wf)
	errs = append(errs, dataflowLayer(wf, cycleErr)...)

	errs = append(errs, templateLayer(wf, order, reg)...)

	if reg != nil && !skipNodeTypes {
		errs = append(errs, nodeTypeLayer(wf, reg)...)
	}

	errs = append(errs, jsonAntiPatternLayer(wf)...)

	return errs
}

// schemaLayer applies the JSON-Schema rules of spec §3 plus the structural
// checks spec §4.C.1 calls out explicitly: id uniqueness, start_node
// existence, at most one stdin input.
func schemaLayer(wf *ir.Workflow, params map[string]any) []string {
	var errs []string

	doc, err := json.Marshal(wf)
	if err != nil {
		return []string{fmt.Sprintf("workflow: failed to serialize for schema check: %v", err)}
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		errs = append(errs, fmt.Sprintf("workflow: schema validation failed: %v", err))
	} else if !result.Valid() {
		for _, re := range result.Errors() {
			errs = append(errs, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
	}

	seen := make(map[string]bool, len(wf.Nodes))
	for i, n := range wf.Nodes {
		if !ir.ValidID(n.ID) {
			errs = append(errs, fmt.Sprintf("nodes[%d].id: %q is not a valid id (expected word characters)", i, n.ID))
		}
		if seen[n.ID] {
			errs = append(errs, fmt.Sprintf("nodes[%d].id: duplicate node id %q", i, n.ID))
		}
		seen[n.ID] = true
	}

	start := wf.EffectiveStartNode()
	if start != "" {
		if _, ok := wf.NodeByID(start); !ok {
			errs = append(errs, fmt.Sprintf("start_node: %q does not reference an existing node", start))
		}
	}

	stdinCount := 0
	for name, spec := range wf.Inputs {
		if spec.Stdin {
			stdinCount++
		}
		if stdinCount > 1 {
			errs = append(errs, fmt.Sprintf("inputs[%s]: at most one input may declare stdin: true", name))
			break
		}
	}

	if params != nil {
		for name, spec := range wf.Inputs {
			if !spec.Required || spec.Default != nil || spec.Stdin {
				continue
			}
			if _, provided := params[name]; !provided {
				errs = append(errs, fmt.Sprintf("inputs[%s]: required input has no default and was not provided in params", name))
			}
		}
	}

	return errs
}

// dataflowLayer implements spec §4.C.2: Kahn's order over non-error edges,
// with every edge endpoint and output-source root required to exist.
func dataflowLayer(wf *ir.Workflow, cycleErr error) []string {
	var errs []string

	if cycleErr != nil {
		var ce *dag.CycleError
		if errors.As(cycleErr, &ce) {
			errs = append(errs, fmt.Sprintf("edges: cycle detected among non-error edges: %v — suggestion: break the cycle or route it through an error action", ce.Cycle))
		} else {
			errs = append(errs, fmt.Sprintf("edges: %v", cycleErr))
		}
	}

	for i, e := range wf.Edges {
		if _, ok := wf.NodeByID(e.From); !ok {
			errs = append(errs, fmt.Sprintf("edges[%d].from: %q does not reference an existing node", i, e.From))
		}
		if _, ok := wf.NodeByID(e.To); !ok {
			errs = append(errs, fmt.Sprintf("edges[%d].to: %q does not reference an existing node", i, e.To))
		}
	}

	for name, spec := range wf.Outputs {
		for _, ref := range tmpl.References(spec.Source) {
			root := tmpl.RootOf(ref)
			if root == "" {
				continue
			}
			if _, isNode := wf.NodeByID(root); isNode {
				continue
			}
			if _, isInput := wf.Inputs[root]; isInput {
				continue
			}
			errs = append(errs, fmt.Sprintf("outputs[%s].source: %q references neither a node nor a declared input — suggestion: check the spelling of %q", name, spec.Source, root))
		}
	}

	return errs
}

// templateLayer implements spec §4.C.3: every template's root variable
// must be a declared input or a node that precedes the referencing node in
// execution order; when a registry is available, the first path segment
// after a node-output root is checked against that node's output_spec, for
// nodes that declare one. An undeclared field is reported as an entry of
// the returned list marked "(warning)"; the list does not keep warnings
// apart from errors, so a caller that fails on any entry fails on it too.
func templateLayer(wf *ir.Workflow, order []string, reg *registry.Registry) []string {
	var errs []string

	checkRef := func(path, ref, referencingNodeID string) {
		root := tmpl.RootOf(ref)
		if _, isInput := wf.Inputs[root]; isInput {
			return
		}
		if _, isNode := wf.NodeByID(root); !isNode {
			errs = append(errs, fmt.Sprintf("%s: ${%s} references unknown root %q — suggestion: declare it as an input or check the node id", path, ref, root))
			return
		}
		if referencingNodeID != "" && !dag.Precedes(order, root, referencingNodeID) {
			errs = append(errs, fmt.Sprintf("%s: ${%s} references node %q which does not precede %q in execution order", path, ref, root, referencingNodeID))
			return
		}
		if reg != nil {
			warnUnknownOutputField(reg, wf, root, ref, path, &errs)
		}
	}

	for i, n := range wf.Nodes {
		for key, v := range n.Params {
			path := fmt.Sprintf("nodes[%d].params.%s", i, key)
			for _, ref := range tmpl.References(v) {
				checkRef(path, ref, n.ID)
			}
		}
	}

	for name, spec := range wf.Outputs {
		path := fmt.Sprintf("outputs[%s].source", name)
		for _, ref := range tmpl.References(spec.Source) {
			checkRef(path, ref, "")
		}
	}

	return errs
}

func warnUnknownOutputField(reg *registry.Registry, wf *ir.Workflow, root, ref, path string, errs *[]string) {
	node, ok := wf.NodeByID(root)
	if !ok || !reg.Contains(node.Type) {
		return
	}
	n, ok := reg.Get(node.Type)
	if !ok {
		return
	}
	segs, err := tmpl.ParsePath(ref)
	if err != nil || len(segs) < 2 {
		return
	}
	field := segs[1].Key
	if field == "" {
		return
	}
	spec := n.OutputSpec()
	if len(spec) == 0 {
		return
	}
	if _, known := spec[field]; !known {
		*errs = append(*errs, fmt.Sprintf("%s: ${%s} references field %q not declared in node %q's output_spec (warning)", path, ref, field, root))
	}
}

// nodeTypeLayer implements spec §4.C.4.
func nodeTypeLayer(wf *ir.Workflow, reg *registry.Registry) []string {
	var errs []string
	for i, n := range wf.Nodes {
		if !reg.Contains(n.Type) {
			errs = append(errs, fmt.Sprintf("nodes[%d].type: %q is not a registered node type", i, n.Type))
		}
	}
	return errs
}

// jsonAntiPatternLayer implements spec §4.C.5: flag a param whose string
// value is itself a JSON document with a template embedded inside it — a
// common authoring mistake where a whole object was hand-stringified
// instead of referenced directly via a simple template.
func jsonAntiPatternLayer(wf *ir.Workflow) []string {
	var errs []string
	for i, n := range wf.Nodes {
		for key, v := range n.Params {
			s, ok := v.(string)
			if !ok || !templateRef.MatchString(s) {
				continue
			}
			probe := templateRef.ReplaceAllString(s, `0`)
			trimmed := strings.TrimSpace(probe)
			if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
				continue
			}
			var js any
			if err := json.Unmarshal([]byte(trimmed), &js); err == nil {
				errs = append(errs, fmt.Sprintf(
					"nodes[%d].params.%s: value looks like hand-authored JSON containing a template — suggestion: reference the object directly with a simple template instead of stringifying it",
					i, key))
			}
		}
	}
	return errs
}
