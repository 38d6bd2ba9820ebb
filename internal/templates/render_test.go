package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFragments(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("badge", map[string]any{"Mode": "individual", "Count": 1, "Max": 2})
	require.NoError(t, err)
	assert.Contains(t, html, "1 / 2 selected")

	html, err = r.Render("badge", map[string]any{"Mode": "group", "Status": "Selecting Group 2"})
	require.NoError(t, err)
	assert.Contains(t, html, "Selecting Group 2")

	html, err = r.Render("selection-list", map[string]any{"Items": nil, "EmptyTitle": "Nothing", "EmptyMessage": "Click a feature"})
	require.NoError(t, err)
	assert.Contains(t, html, "Click a feature")
}

func TestOverrideDirAndReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(`{{define "badge"}}v1{{end}}`), 0o644))

	r, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", r.MustRender("badge", nil))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(`{{define "badge"}}v2{{end}}`), 0o644))
	require.NoError(t, r.Reload(dir))
	assert.Equal(t, "v2", r.MustRender("badge", nil))

	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}
