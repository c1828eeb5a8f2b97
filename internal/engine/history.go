package engine

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// history keeps finished requests visible for a while after they end so
// late status queries and repeated cancels still resolve.
type history struct {
	cache     *ttlcache.Cache[string, RequestInfo]
	closeOnce sync.Once
}

func newHistory(ttl time.Duration) *history {
	c := ttlcache.New[string, RequestInfo](
		ttlcache.WithTTL[string, RequestInfo](ttl),
		ttlcache.WithDisableTouchOnHit[string, RequestInfo](),
	)
	go c.Start()
	return &history{cache: c}
}

func (h *history) put(info RequestInfo) {
	h.cache.Set(info.ID, info, ttlcache.DefaultTTL)
}

func (h *history) get(id string) (RequestInfo, bool) {
	item := h.cache.Get(id)
	if item == nil {
		return RequestInfo{}, false
	}
	return item.Value(), true
}

func (h *history) len() int { return h.cache.Len() }

func (h *history) close() { h.closeOnce.Do(h.cache.Stop) }
