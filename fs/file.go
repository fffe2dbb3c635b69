package fs

import (
	"io"
	"io/fs"
)

// File is an open handle on a Filesystem. Worktree files and repository
// metadata are both read and written through it.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker

	// Name is the path the file was opened with.
	Name() string
	Stat() (fs.FileInfo, error)
}
