//go:build ebr_cachelinesize_256

package opt

// CacheLineSize_ forced to 256 bytes via the ebr_cachelinesize_256 build tag.
// Use: go build -tags=ebr_cachelinesize_256
const CacheLineSize_ = 256
