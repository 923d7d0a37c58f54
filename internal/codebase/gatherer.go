// Package codebase gathers a snapshot of the project for LLM prompts: a
// capped file listing plus the files most relevant to the feedback.
package codebase

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
)

// Options tunes a Gatherer. Zero values use the defaults below.
type Options struct {
	// Exclude holds extra patterns: "dir/" for directories, globs
	// matched against the base name, or exact relative paths.
	Exclude      []string
	MaxFiles     int // listing cap (default 50)
	MaxKeyFiles  int // key files included with content (default 10)
	MaxFileBytes int // content preview per key file (default 4000)
	Concurrency  int // parallel file reads (default 8)
}

var defaultExclude = []string{
	".git/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	".iter8/",
	".iter8_backups/",
	"*.log",
	".env*",
	"*.lock",
}

// anchorFiles describe the project and always rank as key files.
var anchorFiles = map[string]int{
	"go.mod":         5,
	"package.json":   5,
	"README.md":      4,
	"pyproject.toml": 4,
	"Cargo.toml":     4,
	"tsconfig.json":  2,
}

// File is a key file with (possibly truncated) content.
type File struct {
	Path      string
	Content   string
	Truncated bool
	Score     int
}

// Snapshot is the gathered project context.
type Snapshot struct {
	Root       string
	Files      []string // first MaxFiles paths, sorted
	TotalFiles int
	KeyFiles   []File
	Languages  map[string]int
	// Module and GoVersion are set when the root holds a go.mod.
	Module    string
	GoVersion string
}

// Gatherer walks a project root.
type Gatherer struct {
	root string
	opts Options
}

// NewGatherer creates a gatherer for root.
func NewGatherer(root string, opts Options) *Gatherer {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 50
	}
	if opts.MaxKeyFiles <= 0 {
		opts.MaxKeyFiles = 10
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 4000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	opts.Exclude = append(append([]string{}, defaultExclude...), opts.Exclude...)
	return &Gatherer{root: root, opts: opts}
}

// Gather walks the root and ranks files against query.
func (g *Gatherer) Gather(ctx context.Context, query string) (Snapshot, error) {
	snap := Snapshot{Root: g.root, Languages: make(map[string]int)}

	var all []string
	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if path != g.root && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(g.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if g.excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		all = append(all, rel)
		if lang := detectLanguage(rel); lang != "" {
			snap.Languages[lang]++
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to walk %s: %w", g.root, err)
	}

	sort.Strings(all)
	snap.TotalFiles = len(all)
	snap.Files = all[:min(len(all), g.opts.MaxFiles)]

	if err := g.readModule(&snap); err != nil {
		slog.Debug("Ignoring unparsable go.mod", "error", err)
	}

	keyFiles, err := g.rank(ctx, all, queryTerms(query))
	if err != nil {
		return Snapshot{}, err
	}
	snap.KeyFiles = keyFiles
	return snap, nil
}

func (g *Gatherer) excluded(rel string, isDir bool) bool {
	for _, pattern := range g.opts.Exclude {
		if matchesPattern(rel, pattern, isDir) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a path matches an exclude pattern.
func matchesPattern(path, pattern string, isDir bool) bool {
	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		if isDir && (path == dir || strings.HasSuffix(path, "/"+dir)) {
			return true
		}
		return strings.HasPrefix(path, pattern) || strings.Contains(path, "/"+pattern)
	}
	if strings.ContainsAny(pattern, "*?[") {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}

func (g *Gatherer) readModule(snap *Snapshot) error {
	data, err := os.ReadFile(filepath.Join(g.root, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return err
	}
	if f.Module != nil {
		snap.Module = f.Module.Mod.Path
	}
	if f.Go != nil {
		snap.GoVersion = f.Go.Version
	}
	return nil
}

// rank scores text files by how often query terms appear in their path and
// content and returns the best ones with content.
func (g *Gatherer) rank(ctx context.Context, files []string, terms []string) ([]File, error) {
	type candidate struct {
		path  string
		score int
	}

	var cands []candidate
	for _, f := range files {
		if !isTextFile(f) {
			continue
		}
		score := anchorFiles[f]
		lower := strings.ToLower(f)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score += 3
			}
		}
		cands = append(cands, candidate{path: f, score: score})
	}

	// Read a shortlist so large trees stay cheap.
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	shortlist := cands[:min(len(cands), g.opts.MaxKeyFiles*4)]

	results := make([]File, len(shortlist))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Concurrency)
	for i, c := range shortlist {
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			data, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(c.path)))
			if err != nil {
				slog.Debug("Skipping unreadable file", "path", c.path, "error", err)
				return nil
			}
			content := string(data)
			score := c.score
			lower := strings.ToLower(content)
			for _, t := range terms {
				score += min(strings.Count(lower, t), 10)
			}

			f := File{Path: c.path, Content: content, Score: score}
			if len(content) > g.opts.MaxFileBytes {
				f.Content = truncateRunes(content, g.opts.MaxFileBytes)
				f.Truncated = true
			}
			results[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var ranked []File
	for _, f := range results {
		if f.Path != "" && f.Score > 0 {
			ranked = append(ranked, f)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Path < ranked[j].Path
	})
	return ranked[:min(len(ranked), g.opts.MaxKeyFiles)], nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"are": true, "was": true, "but": true, "not": true, "you": true, "can": true,
	"should": true, "would": true, "could": true, "please": true, "add": true,
	"when": true, "from": true, "have": true, "has": true, "our": true, "its": true,
}

// queryTerms splits text into lowercase words of three or more letters,
// without stop words or duplicates.
// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func queryTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

var languages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".rs":    "Rust",
	".rb":    "Ruby",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".sh":    "Shell",
	".sql":   "SQL",
	".css":   "CSS",
	".html":  "HTML",
}

func detectLanguage(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}

var textExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".rs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".cs": true, ".sh": true, ".sql": true,
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".html": true, ".css": true, ".scss": true, ".vue": true, ".svelte": true,
	".mod": true, ".proto": true,
}

func isTextFile(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}
