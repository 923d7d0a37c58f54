package codebase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestGatherExcludesAndLists(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                   "package main",
		"src/theme.ts":              "export const theme = 'light'",
		"node_modules/lib/index.js": "ignored",
		".git/config":               "ignored",
		".iter8_backups/abc.json":   "{}",
		"web/node_modules/dep/x.js": "ignored",
		"dist/bundle.js":            "ignored",
		"debug.log":                 "ignored",
		".env.local":                "SECRET=1",
		"docs/README.md":            "# docs",
	})

	snap, err := NewGatherer(root, Options{}).Gather(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"docs/README.md", "main.go", "src/theme.ts"}, snap.Files)
	assert.Equal(t, 3, snap.TotalFiles)
	assert.Equal(t, 1, snap.Languages["Go"])
	assert.Equal(t, 1, snap.Languages["TypeScript"])
}

func TestGatherCapsListing(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		files[name+".txt"] = name
	}
	writeTree(t, root, files)

	snap, err := NewGatherer(root, Options{MaxFiles: 2}).Gather(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, snap.Files)
	assert.Equal(t, 5, snap.TotalFiles)
}

func TestGatherRanksKeyFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":         `{"name": "app"}`,
		"src/theme.ts":         "export const darkMode = false // theme toggle",
		"src/settings/page.ts": "render settings; theme picker",
		"src/util/math.ts":     "export const add = (a, b) => a + b",
		"assets/logo.png":      "binary",
	})

	snap, err := NewGatherer(root, Options{MaxKeyFiles: 3}).Gather(context.Background(), "Please add a dark theme toggle")
	require.NoError(t, err)

	require.NotEmpty(t, snap.KeyFiles)
	assert.Equal(t, "src/theme.ts", snap.KeyFiles[0].Path)
	var paths []string
	for _, f := range snap.KeyFiles {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "package.json")
	assert.NotContains(t, paths, "src/util/math.ts", "files without matches or anchors are dropped")
	assert.NotContains(t, paths, "assets/logo.png")
}

func TestGatherTruncatesContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"README.md": strings.Repeat("x", 100)})

	snap, err := NewGatherer(root, Options{MaxFileBytes: 10}).Gather(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, snap.KeyFiles, 1)
	assert.Equal(t, "xxxxxxxxxx", snap.KeyFiles[0].Content)
	assert.True(t, snap.KeyFiles[0].Truncated)
}

func TestGatherTruncatesOnRuneBoundary(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"README.md": "ab" + strings.Repeat("é", 20)})

	// Byte 5 is the second byte of the second "é".
	snap, err := NewGatherer(root, Options{MaxFileBytes: 5}).Gather(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, snap.KeyFiles, 1)
	assert.Equal(t, "abé", snap.KeyFiles[0].Content)
	assert.True(t, utf8.ValidString(snap.KeyFiles[0].Content))
	assert.True(t, snap.KeyFiles[0].Truncated)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "日", truncateRunes("日本語", 4))
	assert.Equal(t, "", truncateRunes("日本語", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 6))
}

func TestGatherReadsGoModule(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"go.mod":  "module example.com/widget\n\ngo 1.22\n",
		"main.go": "package main",
	})

	snap, err := NewGatherer(root, Options{}).Gather(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "example.com/widget", snap.Module)
	assert.Equal(t, "1.22", snap.GoVersion)
}

func TestGatherCanceled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGatherer(root, Options{}).Gather(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"dark", "mode", "settings", "page"},
		queryTerms("Please add dark mode to the settings page. Dark!"))
	assert.Empty(t, queryTerms("a to of"))
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		isDir   bool
		want    bool
	}{
		{"node_modules", "node_modules/", true, true},
		{"web/node_modules", "node_modules/", true, true},
		{"node_modules_old", "node_modules/", true, false},
		{"app.log", "*.log", false, true},
		{"logs/app.txt", "*.log", false, false},
		{"config/secret.yaml", "config/secret.yaml", false, true},
		{"config/secret.yaml.bak", "config/secret.yaml", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPattern(tt.path, tt.pattern, tt.isDir))
		})
	}
}
