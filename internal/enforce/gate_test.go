package enforce

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phaserhq/phaser/internal/contract"
)

func noPrintContract(t *testing.T) *contract.Contract {
	t.Helper()
	return &contract.Contract{
		Version: 1, Enabled: true, CreatedAt: "2026-01-01T00:00:00.000Z",
		Rule: contract.Rule{
			ID: "no-print", Type: contract.ForbidPattern,
			Severity: contract.SeverityError,
			Pattern:  `print\(`, FileGlob: "**/*.py",
			Message: "no print calls",
		},
	}
}

func writeEnvelope(event, cwd, path, content string) *Envelope {
	return &Envelope{
		HookEventName: event,
		ToolName:      "Write",
		ToolInput:     map[string]any{"file_path": path, "content": content},
		CWD:           cwd,
	}
}

func TestParseEnvelope(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"hook_event_name":"PreToolUse","tool_name":"Write","tool_input":{"file_path":"a.py","content":"x"},"cwd":"/tmp"}`))
		if err != nil {
			t.Fatal(err)
		}
		if env.ToolName != "Write" || env.CWD != "/tmp" {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("bad JSON", func(t *testing.T) {
		if _, err := ParseEnvelope([]byte("{not json")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		if _, err := ParseEnvelope([]byte(`{"hook_event_name":"MidToolUse"}`)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestReconstructWrite(t *testing.T) {
	dir := t.TempDir()

	t.Run("new file", func(t *testing.T) {
		env := writeEnvelope(PreToolUse, dir, "test.py", "print('x')\n")
		p, skip, err := Reconstruct(env)
		if err != nil || skip != "" {
			t.Fatalf("skip = %q, err = %v", skip, err)
		}
		if !p.IsNew || p.Content != "print('x')\n" {
			t.Errorf("proposed = %+v", p)
		}
	})

	t.Run("existing file is not new", func(t *testing.T) {
		path := filepath.Join(dir, "exists.py")
		if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		p, skip, err := Reconstruct(writeEnvelope(PreToolUse, dir, "exists.py", "new"))
		if err != nil || skip != "" {
			t.Fatalf("skip = %q, err = %v", skip, err)
		}
		if p.IsNew {
			t.Error("existing file reported new")
		}
	})

	t.Run("missing path skips", func(t *testing.T) {
		env := &Envelope{HookEventName: PreToolUse, ToolName: "Write", ToolInput: map[string]any{"content": "x"}}
		p, skip, err := Reconstruct(env)
		if err != nil || p != nil || skip == "" {
			t.Fatalf("p = %+v, skip = %q, err = %v", p, skip, err)
		}
	})

	t.Run("binary content skips", func(t *testing.T) {
		env := writeEnvelope(PreToolUse, dir, "bin.py", "a\x00b")
		p, skip, _ := Reconstruct(env)
		if p != nil || skip == "" {
			t.Fatalf("p = %+v, skip = %q", p, skip)
		}
	})

	t.Run("unknown tool skips", func(t *testing.T) {
		env := &Envelope{HookEventName: PreToolUse, ToolName: "Bash", ToolInput: map[string]any{}}
		p, skip, _ := Reconstruct(env)
		if p != nil || skip == "" {
			t.Fatalf("p = %+v, skip = %q", p, skip)
		}
	})
}

func TestReconstructEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.py")
	if err := os.WriteFile(path, []byte("a = 1\nb = a\na = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	editEnv := func(oldStr, newStr string) *Envelope {
		return &Envelope{
			HookEventName: PreToolUse,
			ToolName:      "Edit",
			ToolInput:     map[string]any{"file_path": "code.py", "old_str": oldStr, "new_str": newStr},
			CWD:           dir,
		}
	}

	t.Run("replaces first occurrence only", func(t *testing.T) {
		p, skip, err := Reconstruct(editEnv("a = 1", "a = 9"))
		if err != nil || skip != "" {
			t.Fatalf("skip = %q, err = %v", skip, err)
		}
		if p.Content != "a = 9\nb = a\na = 2\n" {
			t.Errorf("content = %q", p.Content)
		}
	})

	t.Run("old_str not found skips", func(t *testing.T) {
		p, skip, _ := Reconstruct(editEnv("missing", "x"))
		if p != nil || skip != "old_str not found in file" {
			t.Fatalf("p = %+v, skip = %q", p, skip)
		}
	})

	t.Run("missing file skips", func(t *testing.T) {
		env := editEnv("a", "b")
		env.ToolInput["file_path"] = "ghost.py"
		p, skip, _ := Reconstruct(env)
		if p != nil || skip == "" {
			t.Fatalf("p = %+v, skip = %q", p, skip)
		}
	})
}

func TestEvaluateDenyOnWrite(t *testing.T) {
	dir := t.TempDir()
	g := &Gate{Contracts: []*contract.Contract{noPrintContract(t)}, Filter: FilterAll}

	t.Run("violation denies with rule id in reason", func(t *testing.T) {
		env := writeEnvelope(PreToolUse, dir, "test.py", "def main():\n    print('hello')\n")
		d, err := g.Evaluate(env)
		if err != nil {
			t.Fatal(err)
		}
		if d.Allow {
			t.Fatal("violating write allowed")
		}
		if !strings.Contains(d.Reason, "no-print") {
			t.Errorf("reason = %q", d.Reason)
		}
	})

	t.Run("ignore directive allows", func(t *testing.T) {
		env := writeEnvelope(PreToolUse, dir, "test.py",
			"def main():\n    print('hello')  # phaser:ignore no-print\n")
		d, err := g.Evaluate(env)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allow {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("unmatched glob allows", func(t *testing.T) {
		env := writeEnvelope(PreToolUse, dir, "main.go", "print(")
		d, err := g.Evaluate(env)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allow {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("severity filter excludes rule", func(t *testing.T) {
		warnOnly := &Gate{Contracts: []*contract.Contract{noPrintContract(t)}, Filter: FilterWarning}
		env := writeEnvelope(PreToolUse, dir, "test.py", "print('x')\n")
		d, err := warnOnly.Evaluate(env)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allow {
			t.Errorf("error-severity rule enforced under warning filter")
		}
	})
}

func TestRenderPreToolUse(t *testing.T) {
	t.Run("deny", func(t *testing.T) {
		out, err := Render(PreToolUse, &Decision{Allow: false, Reason: "contract violation: no-print: no print calls"})
		if err != nil {
			t.Fatal(err)
		}
		var parsed struct {
			HookSpecificOutput struct {
				HookEventName            string `json:"hookEventName"`
				PermissionDecision       string `json:"permissionDecision"`
				PermissionDecisionReason string `json:"permissionDecisionReason"`
			} `json:"hookSpecificOutput"`
		}
		if err := json.Unmarshal(out, &parsed); err != nil {
			t.Fatal(err)
		}
		h := parsed.HookSpecificOutput
		if h.HookEventName != "PreToolUse" || h.PermissionDecision != "deny" {
			t.Errorf("output = %+v", h)
		}
		if !strings.Contains(h.PermissionDecisionReason, "no-print") {
			t.Errorf("reason = %q", h.PermissionDecisionReason)
		}
	})

	t.Run("allow with skip reason", func(t *testing.T) {
		out, err := Render(PreToolUse, &Decision{Allow: true, SkipReason: "content is not text"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(out), `"permissionDecision":"allow"`) {
			t.Errorf("output = %s", out)
		}
	})
}

func TestRenderPostToolUse(t *testing.T) {
	t.Run("allow emits empty object", func(t *testing.T) {
		out, err := Render(PostToolUse, &Decision{Allow: true})
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != "{}" {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("deny emits block with context", func(t *testing.T) {
		out, err := Render(PostToolUse, &Decision{Allow: false, Reason: "contract violation: no-print"})
		if err != nil {
			t.Fatal(err)
		}
		var parsed struct {
			Decision           string `json:"decision"`
			Reason             string `json:"reason"`
			HookSpecificOutput struct {
				HookEventName     string `json:"hookEventName"`
				AdditionalContext string `json:"additionalContext"`
			} `json:"hookSpecificOutput"`
		}
		if err := json.Unmarshal(out, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed.Decision != "block" || parsed.HookSpecificOutput.HookEventName != "PostToolUse" {
			t.Errorf("output = %+v", parsed)
		}
	})
}

func TestIsText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain source", "def main():\n    pass\n", true},
		{"empty", "", true},
		{"tabs and CRLF", "a\tb\r\n", true},
		{"NUL byte", "a\x00b", false},
		{"mostly control bytes", "\x01\x02\x03\x04\x05\x06\x07\x08x", false},
		{"sparse control byte", strings.Repeat("a", 99) + "\x01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isText(tt.content); got != tt.want {
				t.Errorf("isText = %v, want %v", got, tt.want)
			}
		})
	}
}
