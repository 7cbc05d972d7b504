//go:build ebr_cachelinesize_32

package opt

// CacheLineSize_ forced to 32 bytes via the ebr_cachelinesize_32 build tag.
// Use: go build -tags=ebr_cachelinesize_32
const CacheLineSize_ = 32
