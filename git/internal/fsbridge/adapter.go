// Package fsbridge connects the fs.Filesystem abstraction to the billy
// filesystems go-git works on, and lays out repository storage on them.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/codex-libs/repofacade/fs"
	fsb "github.com/codex-libs/repofacade/fs/billy"
)

// ToBillyFilesystem unwraps an fs.Filesystem created by the fs/billy
// package. Any other implementation is an error.
//
//nolint:ireturn // go-git consumes the billy interface.
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	b, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy.FS from fs/billy package, got %T", fsys)
	}
	return b.Raw(), nil
}

// IsHost reports whether fsys addresses the host filesystem by absolute
// paths, as fs/billy.NewBaseOSFS does.
func IsHost(fsys fs.Filesystem) bool {
	b, ok := fsys.(*fsb.FS)
	return ok && b.Host()
}
