package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// CharEncoding resolves Loader.Encoding. UTF-8 (the default) returns
// unicode.UTF8, which decodes as a pass-through.
func (l Loader) CharEncoding() (encoding.Encoding, error) {
	return lookupEncoding(l.Encoding)
}

// CommaRune returns the first rune of Loader.Comma, or ',' when empty.
func (l Loader) CommaRune() rune {
	for _, r := range l.Comma {
		return r
	}
	return ','
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
