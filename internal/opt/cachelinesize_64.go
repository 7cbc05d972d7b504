//go:build ebr_cachelinesize_64

package opt

// CacheLineSize_ forced to 64 bytes via the ebr_cachelinesize_64 build tag.
// Use: go build -tags=ebr_cachelinesize_64
const CacheLineSize_ = 64
