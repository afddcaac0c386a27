package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeYAML renders a manifest as YAML without any YAML library. The
// output is deliberately conservative so that any compliant parser (and
// our own loader) reads it back identically: special-content strings are
// single-quoted with '' escapes, multiline or long content uses a literal
// block scalar with an exact chomping indicator, and content carrying
// carriage returns is double-quoted with escapes. Binary entries carry a
// null content node.
//
// The encoder has no dependencies so it can run as a standalone subprocess
// during audits without loading the rest of the module's stack.
func EncodeYAML(m *Manifest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "root: %s\n", scalar(m.Root))
	fmt.Fprintf(&b, "captured_at: %s\n", scalar(m.CapturedAt))
	fmt.Fprintf(&b, "file_count: %d\n", m.FileCount)
	fmt.Fprintf(&b, "total_size_bytes: %d\n", m.TotalSizeBytes)
	if len(m.Files) == 0 {
		b.WriteString("files: []\n")
		return b.String()
	}

	b.WriteString("files:\n")
	for i := range m.Files {
		fe := &m.Files[i]
		fmt.Fprintf(&b, "- path: %s\n", scalar(fe.Path))
		fmt.Fprintf(&b, "  type: %s\n", fe.Kind)
		fmt.Fprintf(&b, "  size: %d\n", fe.Size)
		fmt.Fprintf(&b, "  sha256: %s\n", scalar(fe.SHA256))
		fmt.Fprintf(&b, "  executable: %t\n", fe.Executable)
		if fe.Kind == KindBinary {
			b.WriteString("  content: null\n")
			continue
		}
		writeContent(&b, fe.Content, "  ")
	}
	return b.String()
}

// blockScalarThreshold is the inline-content length limit; longer strings
// switch to a literal block scalar.
const blockScalarThreshold = 80

// writeContent emits the content node: inline scalar for short single-line
// strings, double-quoted escapes for carriage returns (block scalars
// normalize CRLF to LF on load), literal block scalar otherwise.
func writeContent(b *strings.Builder, content, indent string) {
	if strings.Contains(content, "\r") {
		fmt.Fprintf(b, "%scontent: %s\n", indent, dquote(content))
		return
	}
	if !strings.Contains(content, "\n") && len(content) <= blockScalarThreshold {
		fmt.Fprintf(b, "%scontent: %s\n", indent, scalar(content))
		return
	}

	// Chomping must mirror the original exactly: "|-" for no trailing
	// newline, "|" for exactly one, "|+" to keep a run of them. Clip
	// chomping also erases a newline-only body, so that case keeps too.
	stripped := strings.TrimRight(content, "\n")
	trailing := len(content) - len(stripped)
	var indicator, body string
	switch {
	case trailing == 0:
		indicator, body = "|-", content
	case trailing == 1 && stripped != "":
		indicator, body = "|", stripped
	default:
		indicator, body = "|+", strings.TrimSuffix(content, "\n")
	}
	// An explicit indentation indicator is required when the first content
	// line itself starts with whitespace.
	if first := firstNonEmptyLine(body); first != "" && (first[0] == ' ' || first[0] == '\t') {
		indicator = strings.Replace(indicator, "|", "|2", 1)
	}
	fmt.Fprintf(b, "%scontent: %s\n", indent, indicator)
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(b, "%s  %s\n", indent, line)
	}
}

// dquote renders a double-quoted scalar with escaped line breaks and
// control characters, for content a block scalar would not round-trip.
func dquote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// firstNonEmptyLine returns the first non-empty line of body.
func firstNonEmptyLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			return line
		}
	}
	return ""
}

// yamlReserved are plain-scalar spellings that parse as non-strings.
var yamlReserved = map[string]bool{
	"null": true, "~": true, "true": true, "false": true,
	"yes": true, "no": true, "on": true, "off": true,
}

// scalar renders a string scalar, single-quoting whenever a plain scalar
// could be misread. Internal apostrophes double up inside quotes.
func scalar(s string) string {
	if needsQuote(s) {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return s
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if yamlReserved[strings.ToLower(s)] {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	if strings.ContainsAny(s, ":#{}[],&*!|>'\"%@`") {
		return true
	}
	switch s[0] {
	case '-', '?', ' ', '\t':
		return true
	}
	return false
}
