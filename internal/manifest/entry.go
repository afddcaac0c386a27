// Package manifest captures a directory tree as a content-addressed manifest,
// compares two manifests into a structured diff, and persists pre/post
// snapshots keyed by audit identity.
package manifest

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"
)

// FileKind tags a manifest entry as decoded text or opaque binary.
type FileKind string

const (
	KindText   FileKind = "text"
	KindBinary FileKind = "binary"
)

// FileEntry describes one regular file in a captured tree. Text entries
// carry the decoded UTF-8 content; binary entries carry none.
type FileEntry struct {
	Path       string   // relative to the manifest root, forward slashes
	Kind       FileKind
	Size       int64
	SHA256     string // lowercase hex of the raw bytes
	Content    string // UTF-8 content; unset for binary entries
	Executable bool   // any of the user/group/other execute bits
}

// IsText reports whether the entry carries decoded content.
func (e *FileEntry) IsText() bool { return e.Kind == KindText }

// binaryExtensions is the closed set of suffixes treated as binary without
// inspecting content: images, archives, executables, fonts, compiled
// artifacts, and databases.
var binaryExtensions = map[string]bool{
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true,
	// archives
	".zip": true, ".tar": true, ".gz": true, ".tgz": true, ".bz2": true,
	".xz": true, ".7z": true, ".rar": true,
	// executables and libraries
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	// fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// compiled artifacts
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true,
	".obj": true, ".wasm": true,
	// databases and documents
	".db": true, ".sqlite": true, ".sqlite3": true, ".pdf": true,
}

// nulProbeLimit bounds the NUL-byte scan to the head of the file.
const nulProbeLimit = 8 * 1024

// IsBinary classifies content: a known binary extension, a NUL byte in the
// first 8 KiB, or invalid UTF-8 anywhere all mark the file binary.
func IsBinary(relPath string, data []byte) bool {
	if binaryExtensions[strings.ToLower(path.Ext(relPath))] {
		return true
	}
	probe := data
	if len(probe) > nulProbeLimit {
		probe = probe[:nulProbeLimit]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return true
	}
	return !utf8.Valid(data)
}
