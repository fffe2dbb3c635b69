package billy

import (
	iofs "io/fs"

	"github.com/go-git/go-billy/v5"
)

// file is a billy.File that can stat itself; go-billy leaves Stat to the
// filesystem that opened the file.
type file struct {
	billy.File
	fs billy.Filesystem
}

func (f *file) Stat() (iofs.FileInfo, error) {
	info, err := f.fs.Stat(f.Name())
	if err != nil {
		return nil, pathError("stat", f.Name(), err)
	}
	return info, nil
}
