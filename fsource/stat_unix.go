//go:build !windows && !plan9

package fsource

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-iso9660/isoimage/stream"
)

// fillPlatformStat extracts the owner, group, and timestamp fields a
// plain os.FileInfo does not expose, following rclone's
// metadata_linux.go pattern of calling unix.Lstat/unix.Stat directly
// into a unix.Stat_t rather than type-asserting os.FileInfo.Sys()
// (which holds the standard library's own syscall.Stat_t, a distinct
// type from golang.org/x/sys/unix's). followSymlinks selects Stat
// over Lstat, matching osSource.Stat's own choice of stat call.
func fillPlatformStat(st *Stat, fi os.FileInfo, path string, followSymlinks bool) {
	var raw unix.Stat_t
	var err error
	if followSymlinks {
		err = unix.Stat(path, &raw)
	} else {
		err = unix.Lstat(path, &raw)
	}
	if err != nil {
		return
	}
	st.UID = raw.Uid
	st.GID = raw.Gid
	st.ATime = time.Unix(raw.Atim.Unix())
	st.CTime = time.Unix(raw.Ctim.Unix())
	st.Ident = stream.Identity{DevID: uint64(raw.Dev), InoID: raw.Ino}
}

// identityOf stats path (following a symlink, as opening it would) for
// the device/inode pair an osStream needs to dedup by identity.
func identityOf(fi os.FileInfo, path string) stream.Identity {
	var raw unix.Stat_t
	if err := unix.Stat(path, &raw); err != nil {
		return stream.Identity{InoID: stream.NextSyntheticIno()}
	}
	return stream.Identity{DevID: uint64(raw.Dev), InoID: raw.Ino}
}
