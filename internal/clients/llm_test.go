package clients

import (
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `[{"questionNo":1}]`, `[{"questionNo":1}]`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"json fence", "```json\n{\"questions\":[]}\n```", `{"questions":[]}`},
		{"fence with surrounding whitespace", "  ```json\n[]\n```  ", "[]"},
		{"payload on fence line", "```{\"a\":1}\n```", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseGeneratedSet(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		got, err := parseGeneratedSet(`[{"questionNo":1,"questionsType":"MCQ","question":"q","additional":["a","b","c","d"],"qAnswer":"a"}]`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Type != "MCQ" || len(got[0].Additional) != 4 {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("wrapped object", func(t *testing.T) {
		got, err := parseGeneratedSet(`{"questions":[{"questionNo":1,"questionsType":"TrueFalse","question":"q","additional":[],"qAnswer":"True"}]}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Answer != "True" {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("missing questions key", func(t *testing.T) {
		if _, err := parseGeneratedSet(`{"items":[]}`); err == nil {
			t.Error("expected error for missing questions array")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseGeneratedSet(`not json`); err == nil {
			t.Error("expected error for invalid json")
		}
	})
}

func TestBuildObjectKey(t *testing.T) {
	examID := "exam-1"
	classID := "class-1"

	key := BuildObjectKey(&examID, nil, "notes.pdf")
	if want := "exams/exam-1/materials/"; !hasPrefix(key, want) {
		t.Errorf("key %q should start with %q", key, want)
	}
	if !hasSuffix(key, "-notes.pdf") {
		t.Errorf("key %q should end with the sanitized file name", key)
	}

	key = BuildObjectKey(nil, &classID, "my lecture (1).pdf")
	if want := "classes/class-1/materials/"; !hasPrefix(key, want) {
		t.Errorf("key %q should start with %q", key, want)
	}
	if !hasSuffix(key, "-my_lecture_1.pdf") {
		t.Errorf("key %q should carry the sanitized file name", key)
	}

	key = BuildObjectKey(nil, nil, "../../etc/passwd")
	if !hasPrefix(key, "materials/") {
		t.Errorf("key %q should fall back to the materials prefix", key)
	}
	if containsStr(key, "..") {
		t.Errorf("key %q should not carry path traversal", key)
	}
}

func hasPrefix(s, p string) bool  { return len(s) >= len(p) && s[:len(p)] == p }
func hasSuffix(s, p string) bool  { return len(s) >= len(p) && s[len(s)-len(p):] == p }
func containsStr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
