package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML_BasicMarkdown(t *testing.T) {
	r := New()
	out, err := r.HTML([]byte("# Title\n\nsome *emphasis*\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>Title</h1>")
	assert.Contains(t, string(out), "<em>emphasis</em>")
}

func TestHTML_GFMTable(t *testing.T) {
	r := New()
	out, err := r.HTML([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
}
