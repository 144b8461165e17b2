package tracker

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/catmotion/types/sample"
)

// newDedupePassFunc returns a func reporting true if the sample was not seen
// among the last size samples. It is not safe for concurrent use.
func newDedupePassFunc(size int) func(sample.LocationSample) bool {
	if size <= 0 {
		return func(sample.LocationSample) bool { return true }
	}
	var dedupeCache = lru.New(size)
	return func(s sample.LocationSample) bool {
		hash, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
