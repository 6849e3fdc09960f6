//go:build windows || plan9

package fsource

func getXattrAAString(path string) (string, bool) {
	return "", false
}
