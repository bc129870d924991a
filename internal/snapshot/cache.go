package snapshot

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"pinreport/internal/raster"
)

type cachedPage struct {
	page *raster.Page
	err  error
}

// pageCache shares rasterized pages between pins of one batch. Failures are
// cached too so every pin on a broken plan reports the same cause.
type pageCache struct {
	fetcher    Fetcher
	rasterizer raster.Rasterizer

	group singleflight.Group
	mu    sync.Mutex
	pages map[string]cachedPage
}

func newPageCache(fetcher Fetcher, rasterizer raster.Rasterizer) *pageCache {
	return &pageCache{
		fetcher:    fetcher,
		rasterizer: rasterizer,
		pages:      make(map[string]cachedPage),
	}
}

func (pc *pageCache) get(ctx context.Context, url string, page int) (*raster.Page, error) {
	key := fmt.Sprintf("%s#%d", url, page)

	pc.mu.Lock()
	cached, ok := pc.pages[key]
	pc.mu.Unlock()
	if ok {
		return cached.page, cached.err
	}

	v, _, _ := pc.group.Do(key, func() (any, error) {
		pc.mu.Lock()
		entry, ok := pc.pages[key]
		pc.mu.Unlock()
		if ok {
			return entry, nil
		}

		data, err := pc.fetcher.Fetch(ctx, url)
		if err != nil {
			entry.err = fmt.Errorf("fetch plan: %w", err)
		} else {
			entry.page, entry.err = pc.rasterizer.Rasterize(ctx, data, page)
		}

		pc.mu.Lock()
		pc.pages[key] = entry
		pc.mu.Unlock()
		return entry, nil
	})
	entry := v.(cachedPage)
	return entry.page, entry.err
}
