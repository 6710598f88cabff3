package perr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IncludesNodeIDWhenSet(t *testing.T) {
	e := WrapNode(CodeExecutionFailure, "fetch", "request timed out", nil)
	assert.Equal(t, "execution_failure: node fetch: request timed out", e.Error())
}

func TestError_OmitsNodeIDWhenUnset(t *testing.T) {
	e := New(CodeSchema, "missing ir_version")
	assert.Equal(t, "schema_error: missing ir_version", e.Error())
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Wrap(CodeExecutionFailure, "upstream call failed", cause)
	assert.Same(t, cause, errors.Unwrap(e))
}

func TestFixable_NonRepairableIsFalse(t *testing.T) {
	assert.False(t, New(CodeNonRepairableAPI, "404").Fixable())
	assert.True(t, New(CodeAPIValidation, "bad field").Fixable())
}

func TestCodeOf_FindsWrappedDomainError(t *testing.T) {
	inner := New(CodeCycle, "a -> b -> a")
	wrapped := fmt.Errorf("compiling workflow: %w", inner)

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeCycle, code)
}

func TestCodeOf_FalseForPlainError(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
}
