// Package errextract turns a failed execution's shared-store state into a
// structured ErrorRecord the repair loop and the caller can both consume
// (spec §4.K).
package errextract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/sharedstore"
)

// DefaultRawResponseBudget is the byte cap applied to raw_response when the
// caller does not configure one (spec §4.K: "MAY cap at a configurable
// byte budget (default 16 KB)").
const DefaultRawResponseBudget = 16 * 1024

// Category classifies the error for both the repair loop and the caller.
type Category string

const (
	CategoryTemplate   Category = "template_error"
	CategoryAPIValid   Category = "api_validation"
	CategoryExecFailed Category = "execution_failure"
	// CategoryStatic marks a record synthesized from a static Validate()
	// error string rather than from a failed execution (used by the
	// orchestrator's Phase 1 validation-repair loop).
	CategoryStatic Category = "static_validation"
	// CategoryCancelled marks a run stopped by context cancellation rather
	// than a node failure — never fixable, since there is nothing for a
	// repair to change (spec §7 cancelled taxonomy entry).
	CategoryCancelled Category = "cancelled"
)

// Record is the structured error produced for one failed node.
type Record struct {
	Source          string         `json:"source"`
	NodeID          string         `json:"node_id"`
	NodeType        string         `json:"node_type,omitempty"`
	Action          string         `json:"action"`
	Category        Category       `json:"category"`
	Message         string         `json:"message"`
	Fixable         bool           `json:"fixable"`
	AvailableFields []string       `json:"available_fields,omitempty"`
	StatusCode      int            `json:"status_code,omitempty"`
	RawResponse     string         `json:"raw_response,omitempty"`
	Truncated       bool           `json:"truncated,omitempty"`
	ResponseHeaders map[string]any `json:"response_headers,omitempty"`
	Hint            string         `json:"hint,omitempty"`
}

// FromStatic wraps a static Validate() error string (which already carries
// a "path: message" shape) into a Record the repair loop can consume the
// same way it consumes runtime failures (spec §4.I Phase 1).
func FromStatic(message string) Record {
	return Record{
		Source:   "static",
		Category: CategoryStatic,
		Message:  message,
		Fixable:  true,
	}
}

var (
	templateFailure  = regexp.MustCompile(`\$\{[^}]*\}`)
	validationShapes = []string{"input should be", "field required", "validation error"}
)

// Extract builds the single Record for the run's current failure, per the
// five steps of spec §4.K. rawResponseBudget <= 0 uses
// DefaultRawResponseBudget.
func Extract(wf *ir.Workflow, s *sharedstore.Store, action string, rawResponseBudget int) Record {
	if rawResponseBudget <= 0 {
		rawResponseBudget = DefaultRawResponseBudget
	}

	nodeID := s.Execution.FailedNode
	nodeType := ""
	if n, ok := wf.NodeByID(nodeID); ok {
		nodeType = n.Type
	}

	nodeOutputs, _ := s.NodeOutput(nodeID)

	rec := Record{
		Source:  "runtime",
		NodeID:  nodeID,
		NodeType: nodeType,
		Action:  action,
		Fixable: !s.NonRepairableError,
	}

	message := extractMessage(s, nodeOutputs, action)
	rec.Message = message

	switch {
	case strings.HasPrefix(action, "error:template_failed") || templateFailure.MatchString(message):
		rec.Category = CategoryTemplate
		rec.AvailableFields = firstNKeys(nodeOutputs, 20)
	case matchesValidationShape(message):
		rec.Category = CategoryAPIValid
		rec.StatusCode = intFromAny(nodeOutputs["status_code"])
		rec.RawResponse, rec.Truncated = truncateRaw(nodeOutputs["raw_response"], rawResponseBudget)
		if headers, ok := nodeOutputs["response_headers"].(map[string]any); ok {
			rec.ResponseHeaders = headers
		}
	default:
		rec.Category = CategoryExecFailed
	}

	return rec
}

// extractMessage implements step 4: prefer shared.error, else
// shared[failed_node].error, else synthesize from the action.
func extractMessage(s *sharedstore.Store, nodeOutputs map[string]any, action string) string {
	if flat := s.Flatten(); flat != nil {
		if msg, ok := flat["error"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := nodeOutputs["error"].(string); ok && msg != "" {
		return msg
	}
	return "node returned action " + action
}

func matchesValidationShape(message string) bool {
	lower := strings.ToLower(message)
	for _, shape := range validationShapes {
		if strings.Contains(lower, shape) {
			return true
		}
	}
	return false
}

func firstNKeys(m map[string]any, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func truncateRaw(v any, budget int) (string, bool) {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case nil:
		return "", false
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		raw = string(b)
	}
	if len(raw) <= budget {
		return raw, false
	}
	return raw[:budget], true
}
