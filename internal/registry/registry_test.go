package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct{}

func (fakeNode) InputSpec() map[string]FieldSpec  { return map[string]FieldSpec{} }
func (fakeNode) OutputSpec() map[string]FieldSpec { return map[string]FieldSpec{} }
func (fakeNode) Exec(ctx context.Context, params map[string]any, execCtx map[string]any) (map[string]any, string, error) {
	return map[string]any{}, "default", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	r.Register("readfile", func() Node { return fakeNode{} }, "reads a file from disk")

	assert.True(t, r.Contains("readfile"))
	assert.False(t, r.Contains("nope"))

	n, ok := r.Get("readfile")
	require.True(t, ok)
	require.NotNil(t, n)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_Search(t *testing.T) {
	r := New()
	r.Register("http-request", func() Node { return fakeNode{} }, "sends an HTTP request")
	r.Register("readfile", func() Node { return fakeNode{} }, "reads a file from disk")

	results := r.Search("http")
	require.Len(t, results, 1)
	assert.Equal(t, "http-request", results[0].Key)

	results = r.Search("file")
	require.Len(t, results, 1)
	assert.Equal(t, "readfile", results[0].Key)
}

func TestRegistry_ListAllSorted(t *testing.T) {
	r := New()
	r.Register("b", func() Node { return fakeNode{} }, "")
	r.Register("a", func() Node { return fakeNode{} }, "")

	assert.Equal(t, []string{"a", "b"}, r.ListAll())
}

func TestRegistry_FreshInstancePerGet(t *testing.T) {
	r := New()
	calls := 0
	r.Register("counter", func() Node {
		calls++
		return fakeNode{}
	}, "")

	_, _ = r.Get("counter")
	_, _ = r.Get("counter")
	assert.Equal(t, 2, calls)
}
