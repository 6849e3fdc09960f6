//go:build windows || plan9

package fsource

import (
	"os"

	"github.com/go-iso9660/isoimage/stream"
)

// fillPlatformStat has nothing reliable to read on these platforms;
// every entry gets a synthesized identity, same as a stream with no
// stable on-disk backing (spec.md §3).
func fillPlatformStat(st *Stat, fi os.FileInfo, path string, followSymlinks bool) {
	st.ATime = fi.ModTime()
	st.CTime = fi.ModTime()
	st.Ident = stream.Identity{InoID: stream.NextSyntheticIno()}
}

func identityOf(fi os.FileInfo, path string) stream.Identity {
	return stream.Identity{InoID: stream.NextSyntheticIno()}
}
