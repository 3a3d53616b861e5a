package utils

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// binarySniffLen is how many leading bytes are inspected when deciding
// whether content is text or binary. Matches git's heuristic window.
const binarySniffLen = 8000

func DetectContentType(key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// IsMarkdownPath reports whether the path looks like a markdown post.
func IsMarkdownPath(key string) bool {
	ext := strings.ToLower(filepath.Ext(key))
	return ext == ".md" || ext == ".markdown"
}

// IsBinaryContent reports whether data should be treated as binary rather
// than text. A NUL byte or invalid UTF-8 in the sniff window marks it binary.
func IsBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) != -1 {
		return true
	}
	// only validate whole runes; the window may split a multi-byte sequence
	for len(sniff) > 0 {
		r, size := utf8.DecodeRune(sniff)
		if r == utf8.RuneError && size == 1 {
			if len(sniff) < utf8.UTFMax {
				break
			}
			return true
		}
		sniff = sniff[size:]
	}
	return false
}

func isTextLike(key string) bool {
	return strings.HasSuffix(key, ".yaml") ||
		strings.HasSuffix(key, ".yml") ||
		strings.HasSuffix(key, ".toml") ||
		strings.HasSuffix(key, ".md") ||
		strings.HasSuffix(key, ".markdown")
}
