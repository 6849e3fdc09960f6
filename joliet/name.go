package joliet

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// jolietForbidden holds the six characters Joliet forbids in a name
// regardless of relaxed options (Microsoft's Joliet spec §3).
const jolietForbidden = "*/:;?\\"

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// translateName sanitizes name for Joliet: replace forbidden
// characters, truncate to MaxNameChars UCS-2 characters (by rune
// count, matching the teacher's truncateJolietName which counts
// runes, not bytes).
func translateName(name string, opts Options) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(jolietForbidden, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()

	runes := []rune(out)
	if len(runes) > opts.MaxNameChars {
		out = string(runes[:opts.MaxNameChars])
	}
	if out == "" {
		out = "_"
	}
	return out
}

// encodeUTF16BE renders s as UCS-2BE bytes using x/text's codec
// instead of the teacher's hand-rolled unicode/utf16 loop, so
// surrogate pairs and encoder errors are handled by a maintained
// library rather than a manual rune-to-uint16 cast.
func encodeUTF16BE(s string) []byte {
	encoded, err := utf16be.NewEncoder().String(s)
	if err != nil {
		// Joliet names are restricted to the BMP in practice; fall back
		// to a lossy per-rune encode rather than dropping the name.
		var out []byte
		for _, r := range s {
			if r > 0xFFFF {
				r = '_'
			}
			out = append(out, byte(r>>8), byte(r))
		}
		return out
	}
	return []byte(encoded)
}
