package disposition

import (
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultFilename is the name a receiver falls back to when the header cannot be decoded.
	DefaultFilename = "downloaded-file"
	// UnnamedFile is substituted when a sender supplies no usable name.
	UnnamedFile = "unnamed-file"
	// MaxFilenameBytes bounds accepted filenames.
	MaxFilenameBytes = 255

	headerName = "Content-Disposition"
	key        = "filename="
)

// ErrInvalidFilename is returned by [Validate].
var ErrInvalidFilename = errors.New("invalid filename")

// Validate reports whether name may be bound to a session: non-empty valid UTF-8 of at
// most MaxFilenameBytes, free of control characters and path separators, and not a
// relative path element.
func Validate(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidFilename
	case len(name) > MaxFilenameBytes, !utf8.ValidString(name):
		return ErrInvalidFilename
	case strings.ContainsAny(name, `/\`):
		return ErrInvalidFilename
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrInvalidFilename
		}
	}
	return nil
}

// Sanitize turns a client-supplied name into one that passes [Validate]: it keeps the
// last path element, drops control characters, and truncates to MaxFilenameBytes.
// Names that end up empty become [UnnamedFile].
func Sanitize(name string) string {
	name = strings.ToValidUTF8(name, "")
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	for len(name) > MaxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	if name == "" || name == "." || name == ".." {
		return UnnamedFile
	}
	return name
}

// Quote wraps name in double quotes, escaping '\' and '"'.
func Quote(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte('"')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '\\' || c == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// Header renders the Content-Disposition value for an attachment named name.
func Header(name string) string {
	return "attachment; " + key + Quote(name)
}

// Set writes the Content-Disposition header for name onto h.
func Set(h http.Header, name string) {
	h.Set(headerName, Header(name))
}

// FilenameFromHeader extracts the filename from a header set whose keys may arrive in any
// letter case. It returns DefaultFilename when extraction fails for any reason.
func FilenameFromHeader(h http.Header) string {
	for k, values := range h {
		if !strings.EqualFold(k, headerName) || len(values) == 0 {
			continue
		}
		if name, ok := Parse(values[0]); ok {
			return name
		}
	}
	return DefaultFilename
}

// Parse extracts the filename from a single Content-Disposition value. The key is matched
// case-insensitively and only where a parameter begins, never inside another parameter's
// quoted value. A quoted value is read up to the first unescaped quote; a bare token is
// read up to the next ';'.
func Parse(value string) (string, bool) {
	i := paramIndex(value, key)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimLeft(value[i+len(key):], " \t")
	if rest == "" {
		return "", false
	}

	if rest[0] != '"' {
		if end := strings.IndexByte(rest, ';'); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}

	var b strings.Builder
	for j := 1; j < len(rest); j++ {
		switch c := rest[j]; c {
		case '\\':
			j++
			if j == len(rest) {
				return "", false
			}
			b.WriteByte(rest[j])
		case '"':
			out := b.String()
			return out, out != ""
		default:
			b.WriteByte(c)
		}
	}
	// unterminated
	return "", false
}

// paramIndex returns the offset of key where it starts a parameter: at the beginning of
// s or after a ';' and optional whitespace. Quoted strings are skipped. key is lower case.
func paramIndex(s, key string) int {
	atParam := true
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '\t':
		case ';':
			atParam = true
		case '"':
			i = quotedEnd(s, i)
			atParam = false
		default:
			if atParam && hasPrefixFold(s[i:], key) {
				return i
			}
			atParam = false
		}
	}
	return -1
}

// quotedEnd returns the index of the quote closing the quoted string opened at s[open],
// or len(s) when it is unterminated.
func quotedEnd(s string, open int) int {
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(s)
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for j := 0; j < len(prefix); j++ {
		c := s[j]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[j] {
			return false
		}
	}
	return true
}
