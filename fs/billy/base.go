package billy

import (
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// hostOS addresses the host filesystem by absolute paths. Chroot hands out
// an osfs rooted at the real OS directory, so repository paths given by
// callers reach go-git unchanged.
type hostOS struct {
	osfs.ChrootOS
}

//nolint:ireturn // signature dictated by billy.Filesystem.
func (h *hostOS) Chroot(p string) (billy.Filesystem, error) {
	return osfs.New(p), nil
}

func (h *hostOS) Root() string {
	return string(filepath.Separator)
}

// NewBaseOSFS returns the host filesystem. It is the default for every
// facade operation; paths passed to it are OS paths.
func NewBaseOSFS() *FS {
	return &FS{fs: &hostOS{}, host: true}
}
