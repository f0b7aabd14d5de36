package listing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "zeta"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "Alpha"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo one.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".upload_0123"), []byte("partial"), 0o644))
	return root
}

func TestReadEntries_Order(t *testing.T) {
	root := populate(t)

	entries, files, err := ReadEntries(root, false)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Alpha/", "zeta/", "A.txt", "b.txt", "photo one.jpg"}, names)
	assert.Equal(t, 3, files)
}

func TestReadEntries_Fields(t *testing.T) {
	root := populate(t)

	entries, _, err := ReadEntries(root, true)
	require.NoError(t, err)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, "-", byName["zeta/"].Size)
	assert.Equal(t, "zeta/", byName["zeta/"].Href)
	assert.Equal(t, "2.0 kB", byName["b.txt"].Size)
	assert.Empty(t, byName["b.txt"].Thumb)
	assert.Equal(t, "photo%20one.jpg", byName["photo one.jpg"].Href)
	assert.Equal(t, "photo%20one.jpg?thumb=1", byName["photo one.jpg"].Thumb)
}

func TestReadEntries_MissingDir(t *testing.T) {
	_, _, err := ReadEntries(filepath.Join(t.TempDir(), "gone"), false)
	assert.Error(t, err)
}

func TestRender_Root(t *testing.T) {
	root := populate(t)
	r, err := NewHTML(Options{})
	require.NoError(t, err)

	out, err := r.Render(root, root, "/")
	require.NoError(t, err)

	assert.Contains(t, out, "Download All (3)")
	assert.Contains(t, out, `href="?download=zip"`)
	assert.Contains(t, out, `enctype="multipart/form-data"`)
	assert.NotContains(t, out, "[..]")
	assert.NotContains(t, out, ".upload_")
	assert.Less(t, strings.Index(out, "zeta/"), strings.Index(out, "A.txt"))
}

func TestRender_Subdirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "my dir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	r, err := NewHTML(Options{ReadOnly: true})
	require.NoError(t, err)

	out, err := r.Render(root, sub, "/my%20dir/")
	require.NoError(t, err)

	assert.Contains(t, out, `href="../"`)
	assert.Contains(t, out, "/my dir/")
	assert.NotContains(t, out, "Download All")
	assert.NotContains(t, out, "<form")
}

func TestRender_EscapesNames(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "<b>x.txt"), nil, 0o644))
	r, err := NewHTML(Options{})
	require.NoError(t, err)

	out, err := r.Render(root, root, "/")
	require.NoError(t, err)
	assert.NotContains(t, out, "<b>x.txt")
	assert.Contains(t, out, "&lt;b&gt;x.txt")
}
