package storage

import (
	"fmt"
	"strings"
)

const (
	// entryPrefix starts every entry file name. Namespace segments may not
	// contain it, so entries never collide with child namespace directories.
	entryPrefix = "~"

	// tempPrefix starts in-flight write files.
	tempPrefix = ".tmp-"

	maxFileNameLength = 255
)

const hexDigits = "0123456789ABCDEF"

// Upper case letters are escaped so names stay distinct on case-insensitive
// filesystems.
func isPlain(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// EscapeKey maps key to a file name. Bytes outside [a-z0-9_-] become %XX,
// so distinct keys always give distinct names, even when compared without
// regard to case.
func EscapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(entryPrefix) + len(key))
	b.WriteString(entryPrefix)
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isPlain(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(name string) (string, error) {
	if !strings.HasPrefix(name, entryPrefix) {
		return "", fmt.Errorf("not an entry file name: %q", name)
	}
	name = name[len(entryPrefix):]

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '%' {
			if !isPlain(c) {
				return "", fmt.Errorf("unexpected byte %q in entry file name", c)
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("truncated escape in entry file name")
		}
		hi, lo := unhex(name[i+1]), unhex(name[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("invalid escape %q in entry file name", name[i:i+3])
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c - 'A' + 10)
	}
	return -1
}

// entryFileName validates key and returns its file name.
func entryFileName(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	name := EscapeKey(key)
	if len(name) > maxFileNameLength {
		return "", NewErrorWithCause(ErrInvalidKey.Code, ErrInvalidKey.Message,
			fmt.Errorf("escaped key is %d bytes, limit is %d", len(name), maxFileNameLength))
	}
	return name, nil
}
