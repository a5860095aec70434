//go:build linux || darwin

package runs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// changeTime returns the inode change time of path, falling back to the
// modification time when stat fails.
func changeTime(path string, info os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return info.ModTime()
	}
	sec, nsec := st.Ctim.Unix()
	return time.Unix(sec, nsec)
}
