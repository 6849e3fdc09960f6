package ecma119

// ConformanceLevel selects an ECMA-119 §7.5/§7.6 name-length profile
// (spec.md §4.3).
type ConformanceLevel int

const (
	Level1 ConformanceLevel = iota // 8.3 names
	Level2                         // up to 31 chars
	Level3                         // up to 31 chars, multi-extent files (naming rules identical to Level2 here)
)

// Options bundles the conformance profile and its relax booleans, each
// a separate named flag per spec.md §4.3's enumeration.
type Options struct {
	Level ConformanceLevel

	AllowLowercase     bool
	AllowFullASCII     bool
	Max37Char          bool
	NoForceDots        bool
	OmitVersionNumbers bool
	AllowDeepPaths     bool
	AllowLongerPaths   bool

	RockRidge bool

	VolumeID      string
	SystemID      string
	PublisherID   string
	PreparerID    string
	ApplicationID string
}

// DefaultOptions returns the strict Level 1 profile the teacher
// targets (uppercase 8.3, no Rock Ridge, no relaxation).
func DefaultOptions() Options {
	return Options{Level: Level1}
}

// maxNameLen returns the identifier length cap for the active profile,
// honoring the max_37_char relaxation (spec.md §4.3).
func (o Options) maxNameLen(isDir bool) int {
	switch o.Level {
	case Level1:
		if isDir {
			return 8
		}
		return 12 // 8.3 plus the dot
	default:
		if o.Max37Char {
			return 37
		}
		return 31
	}
}
