package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultMaxDiffBytes is the per-side size limit above which a unified diff
// is skipped for a modified text file.
const DefaultMaxDiffBytes = 100000

// diffContextLines is the number of unchanged lines shown around each hunk.
const diffContextLines = 3

// ChangeKind classifies one file-level difference.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// FileChange is one file-level difference between two manifests.
type FileChange struct {
	Path       string
	Kind       ChangeKind
	BeforeHash string // empty when added
	AfterHash  string // empty when deleted
	BeforeSize int64
	AfterSize  int64
	DiffLines  []string // unified diff, or a single marker line
}

// DiffResult partitions the union of two manifests' paths into disjoint
// change lists plus an unchanged count.
type DiffResult struct {
	Added          []FileChange
	Modified       []FileChange
	Deleted        []FileChange
	UnchangedCount int
}

// Empty reports whether the result carries no changes.
func (r *DiffResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// Summary renders a one-line human description.
func (r *DiffResult) Summary() string {
	if r.Empty() {
		return "No changes"
	}
	return fmt.Sprintf("%d added, %d modified, %d deleted, %d unchanged",
		len(r.Added), len(r.Modified), len(r.Deleted), r.UnchangedCount)
}

// CompareOptions tunes comparison behavior.
type CompareOptions struct {
	// MaxDiffBytes is the per-side content limit for unified diffs;
	// zero means DefaultMaxDiffBytes.
	MaxDiffBytes int
}

// Compare indexes both manifests by path and partitions the union:
// added (after only), deleted (before only), modified (hash differs),
// unchanged (hash matches). Modified text pairs within the size limit get
// a unified diff; binary or oversized pairs get a marker line.
func Compare(before, after *Manifest, opts CompareOptions) *DiffResult {
	maxDiff := opts.MaxDiffBytes
	if maxDiff <= 0 {
		maxDiff = DefaultMaxDiffBytes
	}

	beforeIdx := before.index()
	afterIdx := after.index()
	result := &DiffResult{}

	for _, fe := range after.Files {
		prev, ok := beforeIdx[fe.Path]
		if !ok {
			result.Added = append(result.Added, FileChange{
				Path:      fe.Path,
				Kind:      ChangeAdded,
				AfterHash: fe.SHA256,
				AfterSize: fe.Size,
			})
			continue
		}
		if prev.SHA256 == fe.SHA256 {
			result.UnchangedCount++
			continue
		}
		change := FileChange{
			Path:       fe.Path,
			Kind:       ChangeModified,
			BeforeHash: prev.SHA256,
			AfterHash:  fe.SHA256,
			BeforeSize: prev.Size,
			AfterSize:  fe.Size,
		}
		switch {
		case !prev.IsText() || !fe.IsText():
			change.DiffLines = []string{"(binary file changed)"}
		case prev.Size > int64(maxDiff) || fe.Size > int64(maxDiff):
			change.DiffLines = []string{"(diff skipped: file too large)"}
		default:
			change.DiffLines = UnifiedDiff(fe.Path, prev.Content, fe.Content, diffContextLines)
		}
		result.Modified = append(result.Modified, change)
	}

	for _, fe := range before.Files {
		if _, ok := afterIdx[fe.Path]; !ok {
			result.Deleted = append(result.Deleted, FileChange{
				Path:       fe.Path,
				Kind:       ChangeDeleted,
				BeforeHash: fe.SHA256,
				BeforeSize: fe.Size,
			})
		}
	}

	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].Path < result.Added[j].Path })
	sort.Slice(result.Modified, func(i, j int) bool { return result.Modified[i].Path < result.Modified[j].Path })
	sort.Slice(result.Deleted, func(i, j int) bool { return result.Deleted[i].Path < result.Deleted[j].Path })
	return result
}

// diffLine is one line of a line-granularity diff.
type diffLine struct {
	op   diffmatchpatch.Operation
	text string // without trailing newline
}

// UnifiedDiff produces a unified diff between two text contents with the
// given number of context lines and a/{path}, b/{path} headers. Equal
// contents yield nil.
func UnifiedDiff(path, before, after string, context int) []string {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	// Line-mode diff: map lines to runes, diff the rune strings, then map
	// back so each edit covers whole lines.
	c1, c2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), lineArray)

	lines := flattenDiffLines(diffs)
	hunks := buildHunks(lines, context)
	if len(hunks) == 0 {
		return nil
	}

	out := []string{
		fmt.Sprintf("--- a/%s", path),
		fmt.Sprintf("+++ b/%s", path),
	}
	for _, h := range hunks {
		out = append(out, h.header())
		for _, dl := range h.lines {
			out = append(out, prefixFor(dl.op)+dl.text)
		}
	}
	return out
}

// flattenDiffLines expands chunked diffs into per-line records.
func flattenDiffLines(diffs []diffmatchpatch.Diff) []diffLine {
	var out []diffLine
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text != "\n" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			out = append(out, diffLine{op: d.Type, text: line})
		}
	}
	return out
}

// hunk is a run of diff lines with its position in both files.
type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []diffLine
}

func (h *hunk) header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldCount, h.newStart, h.newCount)
}

func prefixFor(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffDelete:
		return "-"
	case diffmatchpatch.DiffInsert:
		return "+"
	}
	return " "
}

// buildHunks groups changed lines into hunks with surrounding context.
func buildHunks(lines []diffLine, context int) []hunk {
	// Find indices of changed lines.
	var changed []int
	for i, dl := range lines {
		if dl.op != diffmatchpatch.DiffEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	// Group changed indices whose context windows touch.
	type span struct{ start, end int } // inclusive index range into lines
	var spans []span
	cur := span{start: max(changed[0]-context, 0), end: min(changed[0]+context, len(lines)-1)}
	for _, idx := range changed[1:] {
		start := max(idx-context, 0)
		if start <= cur.end+1 {
			cur.end = min(idx+context, len(lines)-1)
			continue
		}
		spans = append(spans, cur)
		cur = span{start: start, end: min(idx+context, len(lines)-1)}
	}
	spans = append(spans, cur)

	// Precompute old/new line numbers at each index.
	oldAt := make([]int, len(lines)+1)
	newAt := make([]int, len(lines)+1)
	oldLine, newLine := 1, 1
	for i, dl := range lines {
		oldAt[i], newAt[i] = oldLine, newLine
		if dl.op != diffmatchpatch.DiffInsert {
			oldLine++
		}
		if dl.op != diffmatchpatch.DiffDelete {
			newLine++
		}
	}
	oldAt[len(lines)], newAt[len(lines)] = oldLine, newLine

	var hunks []hunk
	for _, sp := range spans {
		h := hunk{
			oldStart: oldAt[sp.start],
			newStart: newAt[sp.start],
			lines:    lines[sp.start : sp.end+1],
		}
		for _, dl := range h.lines {
			if dl.op != diffmatchpatch.DiffInsert {
				h.oldCount++
			}
			if dl.op != diffmatchpatch.DiffDelete {
				h.newCount++
			}
		}
		hunks = append(hunks, h)
	}
	return hunks
}
