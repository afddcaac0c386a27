// Package enforce implements the write-time enforcement gate: a single
// process fed one hook envelope on stdin, reconstructing the proposed
// file state and checking it against the loaded contracts. The gate
// fails open on ambiguous input and closes only when a contract
// explicitly matches.
package enforce

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Hook event names accepted on the envelope.
const (
	PreToolUse  = "PreToolUse"
	PostToolUse = "PostToolUse"
)

// Envelope is the JSON fed to the gate on stdin.
type Envelope struct {
	HookEventName string         `json:"hook_event_name"`
	ToolName      string         `json:"tool_name"`
	ToolInput     map[string]any `json:"tool_input"`
	CWD           string         `json:"cwd"`
}

// ParseEnvelope decodes and minimally validates one envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	if env.HookEventName != PreToolUse && env.HookEventName != PostToolUse {
		return nil, fmt.Errorf("unknown hook event %q", env.HookEventName)
	}
	return &env, nil
}

// ProposedFile is the reconstructed post-write state of one file.
type ProposedFile struct {
	Path    string // absolute
	Content string
	IsNew   bool
}

// maxNonPrintableRatio is the text-validity cutoff for Write content.
const maxNonPrintableRatio = 0.10

// Reconstruct derives the proposed file from the tool input. A nil file
// with a non-empty reason means the gate skips (and allows).
func Reconstruct(env *Envelope) (*ProposedFile, string, error) {
	switch env.ToolName {
	case "Write":
		return reconstructWrite(env)
	case "Edit":
		return reconstructEdit(env)
	default:
		return nil, fmt.Sprintf("tool %q is not checked", env.ToolName), nil
	}
}

func reconstructWrite(env *Envelope) (*ProposedFile, string, error) {
	path, _ := env.ToolInput["file_path"].(string)
	if path == "" {
		return nil, "missing file_path", nil
	}
	content, _ := env.ToolInput["content"].(string)
	if !isText(content) {
		return nil, "content is not text", nil
	}

	path = absPath(env.CWD, path)
	_, err := os.Stat(path)
	return &ProposedFile{
		Path:    path,
		Content: content,
		IsNew:   os.IsNotExist(err),
	}, "", nil
}

func reconstructEdit(env *Envelope) (*ProposedFile, string, error) {
	path, _ := env.ToolInput["file_path"].(string)
	if path == "" {
		return nil, "missing file_path", nil
	}
	oldStr, ok := env.ToolInput["old_str"].(string)
	if !ok || oldStr == "" {
		return nil, "missing old_str", nil
	}
	newStr, _ := env.ToolInput["new_str"].(string)

	path = absPath(env.CWD, path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("cannot read %s", path), nil
	}
	if !utf8.Valid(data) {
		return nil, "file is not valid UTF-8", nil
	}
	current := string(data)
	if !strings.Contains(current, oldStr) {
		return nil, "old_str not found in file", nil
	}

	return &ProposedFile{
		Path:    path,
		Content: strings.Replace(current, oldStr, newStr, 1),
	}, "", nil
}

// isText rejects content containing NUL or more than 10% non-printable
// characters outside tab, CR, and LF.
func isText(content string) bool {
	if strings.ContainsRune(content, 0) {
		return false
	}
	if content == "" {
		return true
	}
	total, bad := 0, 0
	for _, r := range content {
		total++
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if r < 0x20 || r == utf8.RuneError {
			bad++
		}
	}
	return float64(bad)/float64(total) <= maxNonPrintableRatio
}

// absPath resolves path against the envelope's working directory.
func absPath(cwd, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cwd, path)
}
