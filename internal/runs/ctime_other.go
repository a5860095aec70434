//go:build !linux && !darwin

package runs

import (
	"os"
	"time"
)

func changeTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
