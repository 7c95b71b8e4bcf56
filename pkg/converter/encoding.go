package converter

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var textEncodings = map[string]encoding.Encoding{
	"utf8":    nil,
	"utf16le": unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf16be": unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"latin1":  charmap.ISO8859_1,
	"cp1252":  charmap.Windows1252,
}

// TextEncoding looks up a text meta encoding by name. utf8 and the empty
// name return nil, meaning the bytes are used as they are.
func TextEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	if key == "" {
		return nil, nil
	}
	enc, ok := textEncodings[key]
	if !ok {
		return nil, fmt.Errorf("unknown text encoding %q (supported: %s)", name, strings.Join(TextEncodings(), ", "))
	}
	return enc, nil
}

// TextEncodings lists the names TextEncoding accepts.
func TextEncodings() []string {
	names := make([]string, 0, len(textEncodings))
	for name := range textEncodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
