package fsbridge

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// DefaultCacheMiB matches go-git's own object cache default.
const DefaultCacheMiB = 96

// NewStorage creates git storage on billyFS with an LRU object cache of
// cacheMiB mebibytes. Non-positive sizes use DefaultCacheMiB.
func NewStorage(billyFS billy.Filesystem, cacheMiB int) *filesystem.Storage {
	if cacheMiB <= 0 {
		cacheMiB = DefaultCacheMiB
	}

	objCache := cache.NewObjectLRU(cache.FileSize(cacheMiB) * cache.MiByte)
	return filesystem.NewStorage(billyFS, objCache)
}

