package knowledge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "intro.txt"), []byte("  Berpikir komputasional.\n"))
	writeFile(t, filepath.Join(dir, "bab", "POLA.MD"), []byte("# Pengenalan pola"))
	writeFile(t, filepath.Join(dir, "slide.pdf"), []byte("%PDF-1.4"))
	writeFile(t, filepath.Join(dir, "kosong.txt"), []byte("   \n"))
	writeFile(t, filepath.Join(dir, "rusak.txt"), []byte{0xff, 0xfe, 0xfd})

	docs, err := LoadDocuments(dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	assert.Equal(t, "POLA.MD", docs[0].Name)
	assert.Equal(t, "# Pengenalan pola", docs[0].Text)
	assert.Equal(t, "intro.txt", docs[1].Name)
	assert.Equal(t, "  Berpikir komputasional.\n", docs[1].Text)
}

func TestLoadDocuments_PreservesWhitespace(t *testing.T) {
	dir := t.TempDir()
	text := "\n\n" + strings.Repeat("x", 799) + "\n"
	writeFile(t, filepath.Join(dir, "spasi.txt"), []byte(text))

	docs, err := LoadDocuments(dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, text, docs[0].Text)

	chunks := NewChunker(DefaultChunkSize).Split(docs[0].Text)
	require.Len(t, chunks, 2)
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
	}
	assert.Equal(t, text, joined.String())
}

func TestLoadDocuments_MissingDir(t *testing.T) {
	_, err := LoadDocuments(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLoadDocuments_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("teks"))
	writeFile(t, filepath.Join(dir, "b.rst"), []byte("rst"))

	docs, err := LoadDocuments(dir, []string{".rst"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.rst", docs[0].Name)
}
