// Package joliet builds the Microsoft Joliet target tree and writes
// the Supplementary Volume Descriptor and Joliet directory extents,
// reusing the ECMA-119 file-data block assignment (the same
// filesrc.Registry the ecma119 writer populates) but encoding names
// in UCS-2BE and applying Joliet's own length rules, generalizing the
// teacher's truncateJolietName/encodeUTF16BE (iso9660/utils.go) off a
// single hardcoded 64-char cap into an Options-driven profile.
package joliet

// Options configures the Joliet name translation and SVD identifiers.
type Options struct {
	// MaxNameChars is the UCS-2 character cap per path component (the
	// teacher hardcodes 64; some writers relax this to 110).
	MaxNameChars int

	// MaxPathBytes records the Joliet recommendation of 240 bytes for
	// a full path. BuildTree does not read it: paths longer than this
	// are written as they are, with no warning.
	MaxPathBytes int

	VolumeID      string
	SystemID      string
	PublisherID   string
	PreparerID    string
	ApplicationID string
}

// DefaultOptions returns the teacher's own Joliet profile: 64-char
// names, the standard 240-byte path recommendation.
func DefaultOptions() Options {
	return Options{MaxNameChars: 64, MaxPathBytes: 240}
}

// jolietEscapeSequence is the "Level 3" UCS-2 escape sequence SVDs
// advertise at byte offset 88 (ECMA-119 §8.5.2), matching the
// teacher's JolietEscapeSequence default.
var jolietEscapeSequence = [3]byte{0x25, 0x2F, 0x45} // "%/E"
