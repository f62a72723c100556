package googleplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ReneKroon/ttlcache"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

// Catalog resolves SKUs to product details. SKUs the catalog does not know are
// omitted from the result rather than failing the call.
type Catalog interface {
	SkuDetails(ctx context.Context, itemType iap.ItemType, skus []string) ([]iap.Product, error)
}

// ResponseError is a non-OK response from the billing service.
type ResponseError struct {
	Code ResponseCode
}

func (e *ResponseError) Error() string {
	return e.Code.String()
}

type serviceCatalog struct {
	log         *zap.Logger
	service     BillingService
	packageName string
}

// NewServiceCatalog returns a Catalog backed by GetSkuDetails.
func NewServiceCatalog(log *zap.Logger, service BillingService, packageName string) Catalog {
	return &serviceCatalog{
		log:         log,
		service:     service,
		packageName: packageName,
	}
}

func (c *serviceCatalog) SkuDetails(ctx context.Context, itemType iap.ItemType, skus []string) ([]iap.Product, error) {
	var products []iap.Product
	for start := 0; start < len(skus); start += maxSkusPerRequest {
		end := min(start+maxSkusPerRequest, len(skus))

		code, details, err := c.service.GetSkuDetails(ctx, APIVersion, c.packageName, itemType, skus[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", &ResponseError{Code: ServiceUnavailable}, err)
		}
		if code != OK {
			return nil, &ResponseError{Code: code}
		}

		for _, raw := range details {
			product, err := parseSkuDetails(raw)
			if err != nil {
				c.log.Warn("Skipping malformed sku details", zap.Error(err), zap.String("details", raw))
				continue
			}
			products = append(products, product)
		}
	}
	return products, nil
}

// CachedCatalog keeps SkuDetails results for a fixed TTL.
type CachedCatalog struct {
	catalog Catalog
	cache   *ttlcache.Cache
}

func NewCachedCatalog(catalog Catalog, ttl time.Duration) *CachedCatalog {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &CachedCatalog{
		catalog: catalog,
		cache:   cache,
	}
}

func (c *CachedCatalog) SkuDetails(ctx context.Context, itemType iap.ItemType, skus []string) ([]iap.Product, error) {
	var products []iap.Product
	var missing []string
	for _, sku := range skus {
		cached, ok := c.cache.Get(toCacheKey(itemType, sku))
		if ok {
			products = append(products, cached.(iap.Product))
			continue
		}
		missing = append(missing, sku)
	}

	if len(missing) == 0 {
		return products, nil
	}

	fetched, err := c.catalog.SkuDetails(ctx, itemType, missing)
	if err != nil {
		return nil, err
	}
	for _, product := range fetched {
		c.cache.Set(toCacheKey(itemType, product.SKU), product)
	}
	return append(products, fetched...), nil
}

// Invalidate drops the cached details of sku.
func (c *CachedCatalog) Invalidate(itemType iap.ItemType, sku string) {
	c.cache.Remove(toCacheKey(itemType, sku))
}

func (c *CachedCatalog) Close() error {
	c.cache.Close()
	return nil
}

func toCacheKey(itemType iap.ItemType, sku string) string {
	return string(itemType) + ":" + sku
}

// catalogError classifies a Catalog failure for op.
func catalogError(op iap.Operation, err error) *iap.VendorError {
	var re *ResponseError
	if errors.As(err, &re) {
		ve := responseError(op, re.Code)
		ve.Message = err.Error()
		return ve
	}
	return iap.Errorf(iap.GenericFailure(op), "catalog: %v", err)
}
