package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/cache"
	"github.com/edigar/sales-control/internal/domain"
)

const (
	salesCacheKeyPrefix  = "sales:all"
	DefaultSalesCacheTTL = 600 * time.Second
)

// CachedSales decorates a SaleService with cache-aside reads for GetAllSales.
// Writes do not invalidate cached listings: a new sale can stay out of the
// cached listing until the entry expires.
type CachedSales struct {
	next  SaleService
	cache cache.Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedSales(next SaleService, store cache.Store, ttl time.Duration, log logrus.FieldLogger) *CachedSales {
	if store == nil {
		store = cache.NoopStore{}
	}
	if ttl <= 0 {
		ttl = DefaultSalesCacheTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedSales{next: next, cache: store, ttl: ttl, log: log}
}

func (c *CachedSales) CreateSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	return c.next.CreateSale(ctx, input)
}

func (c *CachedSales) GetSalesBySeller(ctx context.Context, sellerID int64, pageSize int) (domain.Page[domain.Sale], error) {
	return c.next.GetSalesBySeller(ctx, sellerID, pageSize)
}

func (c *CachedSales) GetAllSales(ctx context.Context, pageSize int) (domain.Page[domain.Sale], error) {
	key := SalesCacheKey(pageSize)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("sales cache read failed")
	}
	if err == nil && ok {
		var page domain.Page[domain.Sale]
		if err := json.Unmarshal(raw, &page); err == nil {
			return page, nil
		}
		c.log.WithField("key", key).Warn("discarding undecodable sales cache entry")
	}

	page, err := c.next.GetAllSales(ctx, pageSize)
	if err != nil {
		return domain.Page[domain.Sale]{}, err
	}

	payload, err := json.Marshal(page)
	if err != nil {
		return page, nil
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("sales cache write failed")
	}
	return page, nil
}

func SalesCacheKey(pageSize int) string {
	return fmt.Sprintf("%s:page_size:%d", salesCacheKeyPrefix, pageSize)
}
