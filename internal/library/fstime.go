package library

import (
	"os"
	"time"
)

// osStat is a thin wrapper kept as a seam so tests can stub it if needed.
func osStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// fileCreateOrModTime is the watermark used when discovering candidate
// files (Build's full walk, Update's "new files" pass). Spec §9 notes that
// file creation time is unreliable across platforms; musingd resolves that
// open question by using modification time consistently for both the
// "new files" pass and the "re-probe existing rows" pass, rather than
// depending on a birth-time syscall this target platform doesn't expose
// through os.FileInfo.
func fileCreateOrModTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
