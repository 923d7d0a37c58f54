package llm

import (
	"strings"
	"testing"
)

type testResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func TestParse_DirectJSON(t *testing.T) {
	result := Parse[testResponse](`{"success": true, "message": "hello"}`)

	if !result.Success {
		t.Fatalf("Expected successful parse, got error: %s", result.Error)
	}
	if !result.Data.Success || result.Data.Message != "hello" {
		t.Errorf("Unexpected data: %+v", result.Data)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	result := Parse[testResponse]("   ")

	if result.Success {
		t.Error("Expected parse to fail on empty input")
	}
	if result.Error != "empty input" {
		t.Errorf("Expected 'empty input' error, got: %s", result.Error)
	}
}

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"success\": true, \"message\": \"fenced\"}\n```",
			want:  "fenced",
		},
		{
			name:  "bare fence without newlines",
			input: "```{\"success\": true, \"message\": \"tight\"}```",
			want:  "tight",
		},
		{
			name:  "fence inside prose",
			input: "Here you go:\n```json\n{\"success\": true, \"message\": \"inner\"}\n```\nHope it helps!",
			want:  "inner",
		},
		{
			name:  "trailing comma",
			input: `{"success": true, "message": "comma",}`,
			want:  "comma",
		},
		{
			name:  "comments",
			input: "{\n  // explain\n  \"success\": true, /* inline */ \"message\": \"commented\"\n}",
			want:  "commented",
		},
		{
			name:  "prose around object",
			input: `Sure! {"success": true, "message": "mixed"} Let me know.`,
			want:  "mixed",
		},
		{
			name:  "braces in prose before the object",
			input: `Use {curly} style. {"success": true, "message": "second"}`,
			want:  "second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[testResponse](tt.input)
			if !result.Success {
				t.Fatalf("Expected success, got error: %s", result.Error)
			}
			if result.Data.Message != tt.want {
				t.Errorf("Expected message=%q, got %q", tt.want, result.Data.Message)
			}
		})
	}
}

func TestCleanupJSON_LeavesStringsAlone(t *testing.T) {
	input := `{"content": "const url = 'http://x'; // keep\nlet a = [1,2,];", "n": [1, 2,],}`
	got := cleanupJSON(input)
	want := `{"content": "const url = 'http://x'; // keep\nlet a = [1,2,];", "n": [1, 2]}`

	if got != want {
		t.Errorf("cleanupJSON changed string contents:\n got: %s\nwant: %s", got, want)
	}
}

func TestCleanupJSON_EscapedQuotes(t *testing.T) {
	input := `{"s": "say \"hi\" // not a comment"}`
	if got := cleanupJSON(input); got != input {
		t.Errorf("Expected input unchanged, got %s", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`prefix {"a": {"b": 1}} suffix {"c": 2}`, `{"a": {"b": 1}}`},
		{`list: [1, [2, 3]] done`, `[1, [2, 3]]`},
		{`{"s": "unbalanced } in string"}`, `{"s": "unbalanced } in string"}`},
		{`no json here`, ``},
		{`{"open": true`, ``},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.input); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParse_SizeLimit(t *testing.T) {
	input := `{"message": "` + strings.Repeat("x", 200) + `"}`
	result := Parse[testResponse](input, ParseOptions{MaxInputSize: 100, Context: "plan"})

	if result.Success {
		t.Fatal("Expected size limit failure")
	}
	if !strings.HasPrefix(result.Error, "plan: input exceeds size limit") {
		t.Errorf("Unexpected error: %s", result.Error)
	}
}

func TestParse_DisableCleanup(t *testing.T) {
	result := Parse[testResponse]("```json\n{\"success\": true}\n```", ParseOptions{DisableCleanup: true})
	if result.Success {
		t.Error("Expected failure with cleanup disabled")
	}
}

func TestParse_AllStrategiesFail(t *testing.T) {
	result := Parse[testResponse]("this is not json at all")
	if result.Success {
		t.Fatal("Expected failure")
	}
	if result.Error != "all JSON parsing strategies failed" {
		t.Errorf("Unexpected error: %s", result.Error)
	}
	if result.OriginalText != "this is not json at all" {
		t.Errorf("Original text not preserved: %q", result.OriginalText)
	}
}
