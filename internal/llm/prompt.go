package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/feedback"
)

// SystemPrompt is sent as the system message on backends that support one.
const SystemPrompt = "You are a careful coding assistant that turns user feedback into specific, " +
	"complete file changes. You reply with a single JSON object and nothing else."

// BuildPrompt assembles the user prompt for a set of feedback items and a
// project snapshot.
func BuildPrompt(project string, items []feedback.Item, snap codebase.Snapshot) string {
	var b strings.Builder

	b.WriteString("Turn the following user feedback into concrete code changes for this project.\n\n")
	if project != "" {
		fmt.Fprintf(&b, "PROJECT: %s\n", project)
	}
	if snap.Module != "" {
		fmt.Fprintf(&b, "GO MODULE: %s (go %s)\n", snap.Module, snap.GoVersion)
	}
	if langs := languageSummary(snap.Languages); langs != "" {
		fmt.Fprintf(&b, "LANGUAGES: %s\n", langs)
	}

	b.WriteString("\nFEEDBACK ITEMS:\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(it.Text))
		if attrs := it.Attributes(); len(attrs) > 0 {
			parts := make([]string, 0, len(attrs))
			for _, a := range attrs {
				parts = append(parts, a.Key+"="+a.Value)
			}
			fmt.Fprintf(&b, "   (%s)\n", strings.Join(parts, ", "))
		}
	}

	fmt.Fprintf(&b, "\nPROJECT STRUCTURE (%d of %d files):\n", len(snap.Files), snap.TotalFiles)
	for _, f := range snap.Files {
		fmt.Fprintf(&b, "  %s\n", f)
	}

	if len(snap.KeyFiles) > 0 {
		b.WriteString("\nKEY FILES:\n")
		for _, f := range snap.KeyFiles {
			fmt.Fprintf(&b, "\n--- %s ---\n%s", f.Path, f.Content)
			if f.Truncated {
				b.WriteString("\n... (truncated)")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(`
INSTRUCTIONS:
1. Work out what the feedback asks for.
2. Choose the files to create or modify. Paths are relative to the project root.
3. For each file give its COMPLETE new content. Content replaces the file verbatim, so never use placeholders or partial snippets.
4. Give each change a short description and a confidence between 0 and 1.

Reply with ONLY this JSON object, no markdown fences and no extra text:
{
  "summary": "Brief summary of all changes",
  "estimatedTime": "e.g. 5-10 minutes",
  "riskLevel": "low|medium|high",
  "changes": [
    {
      "filePath": "path/to/file.ext",
      "content": "full file content",
      "description": "What this change does",
      "confidence": 0.9
    }
  ]
}

If the feedback is too vague or risky to act on, return an empty "changes" array and explain why in "summary".
`)
	return b.String()
}

func languageSummary(langs map[string]int) string {
	type kv struct {
		name  string
		count int
	}
	var list []kv
	for n, c := range langs {
		list = append(list, kv{n, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].name < list[j].name
	})
	parts := make([]string, 0, len(list))
	for _, l := range list {
		parts = append(parts, fmt.Sprintf("%s (%d)", l.name, l.count))
	}
	return strings.Join(parts, ", ")
}
