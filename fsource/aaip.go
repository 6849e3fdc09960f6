//go:build !windows && !plan9

package fsource

import (
	"strings"

	"github.com/pkg/xattr"
)

// getXattrAAString reads the source file's extended attributes and
// encodes them into the component-list form AAIP entries carry
// ("namespace.key=value" pairs, one per component), following
// rclone's xattr.LList/xattr.Get pattern for enumerating and reading
// POSIX xattrs. The rockridge package is responsible for AAIP's wire
// encoding (spec.md §4.9); this layer only surfaces the raw pairs.
func getXattrAAString(path string) (string, bool) {
	if !xattr.XATTR_SUPPORTED {
		return "", false
	}
	names, err := xattr.LList(path)
	if err != nil || len(names) == 0 {
		return "", false
	}
	var b strings.Builder
	for i, name := range names {
		val, err := xattr.LGet(path, name)
		if err != nil {
			continue
		}
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.Write(val)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
